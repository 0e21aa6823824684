package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	httptrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/net/http"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	apiv1 "github.com/fairspace/ceres/internal/api/v1"
	"github.com/fairspace/ceres/internal/cmd/base"
	"github.com/fairspace/ceres/internal/config"
	"github.com/fairspace/ceres/internal/db"
	"github.com/fairspace/ceres/internal/server"
	"github.com/fairspace/ceres/internal/version"
	"github.com/fairspace/ceres/pkg/events"
	"github.com/fairspace/ceres/pkg/pid"
)

const shutdownTimeout = 10 * time.Second

type Command struct {
	*base.Command

	flagAddr   string
	flagConfig string
}

func (c *Command) Synopsis() string {
	return "Run the server"
}

func (c *Command) Help() string {
	return `Usage: ceres server

  This command runs the ceres PID web server.` + c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("server", flag.ExitOnError))

	f.StringVar(
		&c.flagAddr, "addr", "",
		"[CERES_SERVER_ADDR] Address to bind to for listening.",
	)
	f.StringVar(
		&c.flagConfig, "config", "",
		"Path to ceres config file. Defaults apply when omitted.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	log, ui := c.Log, c.UI

	f := c.Flags()
	if err := f.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}

	cfg, err := config.NewConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config file: %v", err))
		return 1
	}

	// Flags and environment override the config file.
	if val, ok := os.LookupEnv("CERES_SERVER_ADDR"); ok && c.flagAddr == "" {
		c.flagAddr = val
	}
	if c.flagAddr != "" {
		cfg.Server.Addr = c.flagAddr
	}

	if err := cfg.Validate(); err != nil {
		ui.Error(fmt.Sprintf("invalid configuration: %v", err))
		return 1
	}
	log.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.NewPidStore(ctx, cfg, log.Named("db"))
	if err != nil {
		ui.Error(fmt.Sprintf("error initializing pid store: %v", err))
		return 1
	}
	defer store.Close()

	srv := server.Server{
		Config:     cfg,
		PidService: pid.NewService(store, log),
		Health:     store,
		Logger:     log,
	}

	var mux apiv1.Mux
	var handler http.Handler
	if cfg.Datadog.Enabled {
		tracer.Start(
			tracer.WithEnv(cfg.Datadog.Env),
			tracer.WithService(cfg.Datadog.Service),
			tracer.WithServiceVersion(version.Version),
		)
		defer tracer.Stop()

		traced := httptrace.NewServeMux(httptrace.WithServiceName(cfg.Datadog.Service))
		mux, handler = traced, traced
		log.Info("datadog tracing enabled", "env", cfg.Datadog.Env)
	} else {
		plain := http.NewServeMux()
		mux, handler = plain, plain
	}
	apiv1.RegisterRoutes(mux, srv)

	if cfg.Events.Enabled {
		relay, err := newRelay(cfg, store, log)
		if err != nil {
			ui.Error(fmt.Sprintf("error initializing outbox relay: %v", err))
			return 1
		}
		go func() {
			if err := relay.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox relay exited", "error", err)
			}
		}()
		defer relay.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr, "backend", cfg.Store.Backend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			ui.Error(fmt.Sprintf("error starting listener: %v", err))
			return 1
		}
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		ui.Error(fmt.Sprintf("error shutting down server: %v", err))
		return 1
	}

	return 0
}

func newRelay(cfg *config.Config, store *db.Store, log hclog.Logger) (*events.Relay, error) {
	interval, err := cfg.PollInterval()
	if err != nil {
		return nil, err
	}
	return events.New(events.Config{
		DB:           store.DB,
		Brokers:      cfg.Brokers(),
		Topic:        cfg.Topic(),
		PollInterval: interval,
		Logger:       log,
	})
}
