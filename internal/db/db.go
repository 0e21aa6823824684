// Package db builds the configured pid store for the ceres commands.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/fairspace/ceres/internal/config"
	"github.com/fairspace/ceres/pkg/database"
	"github.com/fairspace/ceres/pkg/pid"
	"github.com/fairspace/ceres/pkg/pid/dynamostore"
	"github.com/fairspace/ceres/pkg/pid/gormstore"
	"github.com/fairspace/ceres/pkg/pid/memstore"
)

// connectTimeout bounds how long startup waits for PostgreSQL.
const connectTimeout = 30 * time.Second

// NewDB returns a PostgreSQL connection, retrying while the database starts.
// The schema is expected to be applied by ceres-migrate beforehand.
func NewDB(ctx context.Context, cfg *config.Config, log hclog.Logger) (*gorm.DB, error) {
	return database.ConnectWithRetry(ctx, cfg.DatabaseConfig(), log, connectTimeout)
}

// Store is a pid.Store together with the database handle backing it, if any.
type Store struct {
	pid.Store

	// DB is nil unless the backend is postgres.
	DB *gorm.DB
}

// Ping reports whether the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.DB == nil {
		return nil
	}
	return database.Ping(ctx, s.DB)
}

// Close releases the database connection, if any.
func (s *Store) Close() error {
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewPidStore builds the store selected by cfg.Store.Backend.
func NewPidStore(ctx context.Context, cfg *config.Config, log hclog.Logger) (*Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory pid store; data is lost on exit")
		return &Store{Store: memstore.New()}, nil

	case config.BackendPostgres:
		gdb, err := NewDB(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		s := gormstore.New(gdb, gormstore.WithOutbox(cfg.Events.Enabled))
		return &Store{Store: s, DB: gdb}, nil

	case config.BackendDynamoDB:
		s, err := dynamostore.NewFromConfig(ctx, cfg.DynamoDBConfig())
		if err != nil {
			return nil, fmt.Errorf("error initializing dynamodb store: %w", err)
		}
		log.Info("using dynamodb pid store", "table", cfg.DynamoDB.Table)
		return &Store{Store: s}, nil

	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.Store.Backend)
	}
}
