package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	// The sqlite driver is registered by golang-migrate's sqlite package.
	_ "github.com/lib/pq"

	"github.com/fairspace/ceres/internal/migrate"
)

func main() {
	driver := flag.String("driver", migrate.DriverPostgres, "Database driver (postgres|sqlite)")
	dsn := flag.String("dsn", "", "Database connection string")
	down := flag.Bool("down", false, "Roll back all migrations instead of applying them")
	showVersion := flag.Bool("version", false, "Print the current schema version and exit")
	help := flag.Bool("help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Ceres Database Migration Tool\n\n")
		fmt.Fprintf(os.Stderr, "Applies the pids and pid_outbox schema to PostgreSQL or SQLite.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n\n")
		fmt.Fprintf(os.Stderr, "  PostgreSQL:\n")
		fmt.Fprintf(os.Stderr, "    %s -driver=postgres -dsn=\"host=localhost user=postgres password=postgres dbname=ceres port=5432 sslmode=disable\"\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  SQLite:\n")
		fmt.Fprintf(os.Stderr, "    %s -driver=sqlite -dsn=\"ceres.db\"\n\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}

	log := hclog.New(&hclog.LoggerOptions{Name: "ceres-migrate"})

	if *dsn == "" {
		log.Error("-dsn flag is required; run with -help for usage information")
		os.Exit(1)
	}
	if *driver != migrate.DriverPostgres && *driver != migrate.DriverSQLite {
		log.Error("unsupported driver", "driver", *driver)
		os.Exit(1)
	}

	log.Info("connecting to database", "driver", *driver)
	sqlDB, err := sql.Open(*driver, *dsn)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	switch {
	case *showVersion:
		version, dirty, err := migrate.GetMigrationVersion(sqlDB, *driver)
		if err != nil {
			log.Error("failed to read schema version", "error", err)
			os.Exit(1)
		}
		log.Info("schema version", "version", version, "dirty", dirty)

	case *down:
		log.Warn("rolling back all migrations")
		if err := migrate.RollbackMigrations(sqlDB, *driver); err != nil {
			log.Error("rollback failed", "error", err)
			os.Exit(1)
		}
		log.Info("rollback completed")

	default:
		log.Info("running migrations")
		if err := migrate.RunMigrations(sqlDB, *driver); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("all migrations completed")
	}
}
