package server

import (
	"context"

	"github.com/hashicorp/go-hclog"

	"github.com/fairspace/ceres/internal/config"
	"github.com/fairspace/ceres/pkg/pid"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server contains what the HTTP handlers share.
type Server struct {
	// Config is the config for the server.
	Config *config.Config

	// PidService is the only way handlers reach the pid store.
	PidService *pid.Service

	// Health is checked by the health endpoint. Nil means always healthy.
	Health Pinger

	// Logger is the logger for the server.
	Logger hclog.Logger
}
