package operator

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/mitchellh/cli"
	"gorm.io/gorm"

	"github.com/fairspace/ceres/internal/cmd/base"
	"github.com/fairspace/ceres/internal/config"
	"github.com/fairspace/ceres/internal/db"
	"github.com/fairspace/ceres/pkg/database"
	"github.com/fairspace/ceres/pkg/events"
)

type OutboxCommand struct {
	*base.Command

	flagConfig      string
	flagRetryFailed bool
	flagRetryLimit  int
	flagCleanup     time.Duration
}

func (c *OutboxCommand) Synopsis() string {
	return "Inspect and maintain the pid event outbox"
}

func (c *OutboxCommand) Help() string {
	return `Usage: ceres operator outbox -config=config.hcl

  This command prints pid_outbox counts per status and the database
  connection pool statistics. It can also republish failed events and
  delete published events past a retention period.` +
		c.Flags().Help()
}

func (c *OutboxCommand) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("outbox", flag.ExitOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "(Required) Path to ceres config file",
	)
	f.BoolVar(
		&c.flagRetryFailed, "retry-failed", false,
		"Republish entries in the failed state.",
	)
	f.IntVar(
		&c.flagRetryLimit, "retry-limit", 100,
		"Maximum number of failed entries to republish.",
	)
	f.DurationVar(
		&c.flagCleanup, "cleanup", 0,
		"Delete published entries older than this duration, e.g. 168h.",
	)

	return f
}

func (c *OutboxCommand) Run(args []string) int {
	logger, ui := c.Log, c.UI

	flags := c.Flags()
	if err := flags.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	if c.flagConfig == "" {
		ui.Error("config flag is required")
		return 1
	}

	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config file: %v", err))
		return 1
	}
	if cfg.Store.Backend != config.BackendPostgres {
		ui.Error(fmt.Sprintf("the outbox requires store backend %q", config.BackendPostgres))
		return 1
	}

	ctx := context.Background()
	gdb, err := db.NewDB(ctx, cfg, logger.Named("db"))
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing database: %v", err))
		return 1
	}

	if c.flagRetryFailed {
		relay, err := events.New(events.Config{
			DB:      gdb,
			Brokers: cfg.Brokers(),
			Topic:   cfg.Topic(),
			Logger:  logger,
		})
		if err != nil {
			ui.Error(fmt.Sprintf("error initializing outbox relay: %v", err))
			return 1
		}
		n, err := relay.RetryFailed(ctx, c.flagRetryLimit)
		relay.Stop()
		if err != nil {
			ui.Error(fmt.Sprintf("error retrying failed entries: %v", err))
			return 1
		}
		ui.Info(fmt.Sprintf("Republished %d failed entries", n))
	}

	if c.flagCleanup > 0 {
		n, err := events.DeleteOldPublishedEntries(gdb, c.flagCleanup)
		if err != nil {
			ui.Error(fmt.Sprintf("error cleaning up published entries: %v", err))
			return 1
		}
		ui.Info(fmt.Sprintf("Deleted %d published entries older than %s", n, c.flagCleanup))
	}

	if err := outputStats(ui, gdb); err != nil {
		ui.Error(err.Error())
		return 1
	}

	return 0
}

// outputStats prints the outbox counts per status followed by the pool
// statistics of gdb.
func outputStats(ui cli.Ui, gdb *gorm.DB) error {
	stats, err := events.GetStats(gdb)
	if err != nil {
		return fmt.Errorf("error reading outbox stats: %w", err)
	}
	ui.Output(fmt.Sprintf("pending:   %d", stats.Pending))
	ui.Output(fmt.Sprintf("published: %d", stats.Published))
	ui.Output(fmt.Sprintf("failed:    %d", stats.Failed))

	pool, err := database.GetPoolStats(gdb)
	if err != nil {
		return fmt.Errorf("error reading connection pool stats: %w", err)
	}
	ui.Output(fmt.Sprintf("connections: %d open (%d in use, %d idle), max %d",
		pool.OpenConnections, pool.InUse, pool.Idle, pool.MaxOpenConnections))
	ui.Output(fmt.Sprintf("waits:       %d (%s)", pool.WaitCount, pool.WaitDuration))

	return nil
}
