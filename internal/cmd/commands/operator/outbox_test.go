package operator

import (
	"testing"
	"time"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fairspace/ceres/pkg/events"
	"github.com/fairspace/ceres/pkg/pid"
)

func TestOutputStats(t *testing.T) {
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(&events.OutboxEntry{}))

	for i, uri := range []string{
		"https://workspace.test.fairway.app/iri/collections/789/foo/bar",
		"https://workspace.test.fairway.app/iri/collections/789/foo/baz",
	} {
		entry := events.NewOutboxEntry(pid.Pid{ID: pid.NewUUID(), URI: uri},
			events.PidCreated, time.Now().UTC())
		require.NoError(t, gdb.Create(entry).Error)
		if i == 0 {
			require.NoError(t, entry.MarkAsPublished(gdb))
		}
	}

	ui := cli.NewMockUi()
	require.NoError(t, outputStats(ui, gdb))

	out := ui.OutputWriter.String()
	assert.Contains(t, out, "pending:   1\n")
	assert.Contains(t, out, "published: 1\n")
	assert.Contains(t, out, "failed:    0\n")
	assert.Contains(t, out, "max 1\n")
	assert.Contains(t, out, "waits:")
}
