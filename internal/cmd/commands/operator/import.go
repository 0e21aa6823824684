package operator

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/cli"
	"gopkg.in/yaml.v3"

	"github.com/fairspace/ceres/internal/cmd/base"
	"github.com/fairspace/ceres/internal/config"
	"github.com/fairspace/ceres/internal/db"
	"github.com/fairspace/ceres/pkg/pid"
	"github.com/fairspace/ceres/pkg/pid/memstore"
)

// ImportFile is the YAML document read by "ceres operator import".
//
//	pids:
//	  - id: af4bec86-5297-4521-89d7-13ca579f6fb2
//	    uri: https://workspace.test.fairway.app/iri/collections/789/foo/bar
//	  - uri: https://workspace.test.fairway.app/iri/collections/789/foo/baz
type ImportFile struct {
	Pids []ImportEntry `yaml:"pids"`
}

// ImportEntry is one binding. An empty ID gets a freshly generated one.
type ImportEntry struct {
	ID  string `yaml:"id"`
	URI string `yaml:"uri"`
}

type ImportCommand struct {
	*base.Command

	flagConfig  string
	flagFile    string
	flagDryRun  bool
	flagVerbose bool
}

func (c *ImportCommand) Synopsis() string {
	return "Import pid bindings from a YAML file"
}

func (c *ImportCommand) Help() string {
	return `Usage: ceres operator import -config=config.hcl -file=pids.yaml

  This command imports existing id/uri bindings, keeping their ids. Entries
  whose uri or id is already registered are skipped. In dry-run mode the file
  is only checked against itself; the store is not consulted.` +
		c.Flags().Help()
}

func (c *ImportCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("import", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "Path to ceres config file",
	)
	f.StringVar(
		&c.flagFile, "file", "", "(Required) Path to the YAML file to import",
	)
	f.BoolVar(
		&c.flagDryRun, "dry-run", false,
		"Only print what would be done without making changes.",
	)
	f.BoolVar(
		&c.flagVerbose, "verbose", false,
		"Print each imported binding.",
	)

	return f
}

func (c *ImportCommand) Run(args []string) int {
	logger, ui := c.Log, c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagFile == "" {
		ui.Error("file flag is required")
		return 1
	}

	f, err := os.Open(c.flagFile)
	if err != nil {
		ui.Error(fmt.Sprintf("error opening import file: %v", err))
		return 1
	}
	defer f.Close()

	entries, err := readImportFile(f)
	if err != nil {
		ui.Error(fmt.Sprintf("error reading import file: %v", err))
		return 1
	}
	if len(entries) == 0 {
		ui.Info("No pids to import")
		return 0
	}

	ctx := context.Background()

	var store pid.Store
	if c.flagDryRun {
		ui.Warn("DRY RUN mode enabled - no changes will be made")
		store = memstore.New()
	} else {
		cfg, err := config.NewConfig(c.flagConfig)
		if err != nil {
			ui.Error(fmt.Sprintf("error parsing config file: %v", err))
			return 1
		}
		if err := cfg.Validate(); err != nil {
			ui.Error(fmt.Sprintf("invalid configuration: %v", err))
			return 1
		}
		dbStore, err := db.NewPidStore(ctx, cfg, logger.Named("db"))
		if err != nil {
			ui.Error(fmt.Sprintf("error initializing pid store: %v", err))
			return 1
		}
		defer dbStore.Close()
		store = dbStore
	}

	svc := pid.NewService(store, logger)
	summary := importPids(ctx, svc, entries, ui, c.flagVerbose)

	ui.Info("")
	ui.Info("=== Summary ===")
	ui.Info(fmt.Sprintf("Total entries processed: %d", len(entries)))
	if c.flagDryRun {
		ui.Info(fmt.Sprintf("Would import: %d", summary.Imported))
	} else {
		ui.Info(fmt.Sprintf("Imported: %d", summary.Imported))
	}
	ui.Info(fmt.Sprintf("Skipped (already registered): %d", summary.Skipped))
	if summary.Errors > 0 {
		ui.Error(fmt.Sprintf("Errors encountered: %d", summary.Errors))
		return 1
	}

	if c.flagDryRun {
		ui.Warn("DRY RUN completed - no changes were made")
	} else {
		ui.Info("Import completed successfully")
	}
	return 0
}

func readImportFile(r io.Reader) ([]ImportEntry, error) {
	var file ImportFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return file.Pids, nil
}

type importSummary struct {
	Imported int
	Skipped  int
	Errors   int
}

func importPids(ctx context.Context, svc *pid.Service, entries []ImportEntry, ui cli.Ui, verbose bool) importSummary {
	var s importSummary

	for i, e := range entries {
		var (
			p   *pid.Pid
			err error
		)
		if e.ID == "" {
			p, err = svc.Add(ctx, pid.Pid{URI: e.URI})
		} else {
			id, perr := pid.ParseUUID(e.ID)
			if perr != nil {
				ui.Error(fmt.Sprintf("[%d] invalid id %q: %v", i+1, e.ID, perr))
				s.Errors++
				continue
			}
			p, err = svc.Import(ctx, pid.Pid{ID: id, URI: e.URI})
		}

		switch {
		case err == nil:
			s.Imported++
			if verbose {
				ui.Info(fmt.Sprintf("[%d/%d] %s -> %s", i+1, len(entries), p.ID, p.URI))
			}
		case errors.Is(err, pid.ErrDuplicateURI), errors.Is(err, pid.ErrDuplicateID):
			s.Skipped++
			ui.Warn(fmt.Sprintf("[%d] skipping %s: %v", i+1, e.URI, err))
		default:
			s.Errors++
			ui.Error(fmt.Sprintf("[%d] error importing %s: %v", i+1, e.URI, err))
		}
	}

	return s
}
