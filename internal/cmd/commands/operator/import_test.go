package operator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairspace/ceres/internal/cmd/base"
	"github.com/fairspace/ceres/pkg/pid"
	"github.com/fairspace/ceres/pkg/pid/memstore"
)

const importYAML = `pids:
  - id: af4bec86-5297-4521-89d7-13ca579f6fb2
    uri: https://workspace.test.fairway.app/iri/collections/789/foo/bar
  - uri: https://workspace.test.fairway.app/iri/collections/789/foo/baz
  - id: 6a0b8d2c-3f8e-4c55-9d1f-2f6d2a7e9b10
    uri: https://workspace.test.fairway.app/iri/collections/789/foo/bar
  - id: not-a-uuid
    uri: https://workspace.test.fairway.app/iri/collections/789/foo/bat
`

func TestReadImportFile(t *testing.T) {
	entries, err := readImportFile(strings.NewReader(importYAML))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "af4bec86-5297-4521-89d7-13ca579f6fb2", entries[0].ID)
	assert.Empty(t, entries[1].ID)

	entries, err = readImportFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = readImportFile(strings.NewReader("pids:\n  - identifier: x\n"))
	assert.Error(t, err)
}

func TestImportPids(t *testing.T) {
	ctx := context.Background()
	entries, err := readImportFile(strings.NewReader(importYAML))
	require.NoError(t, err)

	store := memstore.New()
	svc := pid.NewService(store, hclog.NewNullLogger())
	ui := cli.NewMockUi()

	summary := importPids(ctx, svc, entries, ui, true)
	assert.Equal(t, importSummary{Imported: 2, Skipped: 1, Errors: 1}, summary)
	assert.Equal(t, 2, store.Len())

	p, err := svc.FindByURI(ctx, "https://workspace.test.fairway.app/iri/collections/789/foo/bar")
	require.NoError(t, err)
	assert.Equal(t, "af4bec86-5297-4521-89d7-13ca579f6fb2", p.ID.String())

	assert.Contains(t, ui.ErrorWriter.String(), `invalid id "not-a-uuid"`)
	assert.Contains(t, ui.ErrorWriter.String(), "skipping")
	assert.Contains(t, ui.OutputWriter.String(), "af4bec86-5297-4521-89d7-13ca579f6fb2 -> ")

	// A second run skips everything already present.
	summary = importPids(ctx, svc, entries[:1], cli.NewMockUi(), false)
	assert.Equal(t, importSummary{Skipped: 1}, summary)
}

func TestImportCommand_DryRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pids.yaml")
	body := `pids:
  - id: af4bec86-5297-4521-89d7-13ca579f6fb2
    uri: https://example.com/a
  - uri: https://example.com/b
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	ui := cli.NewMockUi()
	cmd := &ImportCommand{Command: base.NewCommand(hclog.NewNullLogger(), ui)}

	code := cmd.Run([]string{"-file", path, "-dry-run"})
	assert.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.Contains(t, ui.OutputWriter.String(), "Would import: 2")
	assert.Contains(t, ui.ErrorWriter.String(), "DRY RUN completed")
}

func TestImportCommand_RequiresFile(t *testing.T) {
	ui := cli.NewMockUi()
	cmd := &ImportCommand{Command: base.NewCommand(hclog.NewNullLogger(), ui)}

	assert.Equal(t, 1, cmd.Run(nil))
	assert.Contains(t, ui.ErrorWriter.String(), "file flag is required")
}
