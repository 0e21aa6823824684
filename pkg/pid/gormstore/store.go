// Package gormstore is the relational pid.Store. PostgreSQL backs production
// deployments; SQLite is used in tests and local development.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/fairspace/ceres/pkg/events"
	"github.com/fairspace/ceres/pkg/pid"
)

// pidRow is the pids table. The primary key enforces id uniqueness and
// idx_pids_uri enforces uri uniqueness.
type pidRow struct {
	ID        pid.UUID  `gorm:"type:uuid;primaryKey"`
	URI       string    `gorm:"type:text;not null;uniqueIndex:idx_pids_uri"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (pidRow) TableName() string {
	return "pids"
}

// toPid normalises CreatedAt to UTC; drivers scan timestamptz into the
// connection's local zone.
func (r pidRow) toPid() *pid.Pid {
	return &pid.Pid{
		ID:        r.ID,
		URI:       r.URI,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

// Store implements pid.Store on top of gorm.
type Store struct {
	db     *gorm.DB
	opts   pid.Options
	outbox bool
}

var _ pid.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPidOptions applies the shared store options.
func WithPidOptions(opts ...pid.Option) Option {
	return func(s *Store) {
		s.opts = pid.NewOptions(opts...)
	}
}

// WithOutbox makes every create and delete also write an events.OutboxEntry
// in the same transaction.
func WithOutbox(enabled bool) Option {
	return func(s *Store) {
		s.outbox = enabled
	}
}

// New returns a Store using db. The schema is expected to exist; see
// AutoMigrate and the SQL migrations in internal/migrate.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{
		db:   db,
		opts: pid.NewOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AutoMigrate creates the tables used by the store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&pidRow{}, &events.OutboxEntry{})
}

// Create implements pid.Store.
func (s *Store) Create(ctx context.Context, uri string) (*pid.Pid, error) {
	return s.insert(ctx, pidRow{ID: s.opts.NewID(), URI: uri})
}

// Import implements pid.Store.
func (s *Store) Import(ctx context.Context, p pid.Pid) (*pid.Pid, error) {
	return s.insert(ctx, pidRow{ID: p.ID, URI: p.URI})
}

func (s *Store) insert(ctx context.Context, row pidRow) (*pid.Pid, error) {
	row.CreatedAt = s.opts.Now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if s.outbox {
			entry := events.NewOutboxEntry(*row.toPid(), events.PidCreated, row.CreatedAt)
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("error writing outbox entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if dup := duplicateError(err); dup != nil {
			return nil, dup
		}
		return nil, fmt.Errorf("error creating pid: %w", err)
	}

	return row.toPid(), nil
}

// GetByID implements pid.Store.
func (s *Store) GetByID(ctx context.Context, id pid.UUID) (*pid.Pid, error) {
	var row pidRow
	if err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&row).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pid.ErrNotFound
		}
		return nil, fmt.Errorf("error getting pid by id: %w", err)
	}
	return row.toPid(), nil
}

// GetByURI implements pid.Store.
func (s *Store) GetByURI(ctx context.Context, uri string) (*pid.Pid, error) {
	var row pidRow
	if err := s.db.WithContext(ctx).
		Where("uri = ?", uri).
		First(&row).
		Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pid.ErrNotFound
		}
		return nil, fmt.Errorf("error getting pid by uri: %w", err)
	}
	return row.toPid(), nil
}

// Delete implements pid.Store.
func (s *Store) Delete(ctx context.Context, id pid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row pidRow
		if err := tx.Where("id = ?", id).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pid.ErrNotFound
			}
			return fmt.Errorf("error getting pid: %w", err)
		}

		result := tx.Where("id = ?", id).Delete(&pidRow{})
		if result.Error != nil {
			return fmt.Errorf("error deleting pid: %w", result.Error)
		}
		// A concurrent delete won the race.
		if result.RowsAffected == 0 {
			return pid.ErrNotFound
		}

		if s.outbox {
			entry := events.NewOutboxEntry(*row.toPid(), events.PidDeleted, s.opts.Now())
			if err := tx.Create(entry).Error; err != nil {
				return fmt.Errorf("error writing outbox entry: %w", err)
			}
		}
		return nil
	})
}

// duplicateError translates a uniqueness violation on the pids table into
// pid.ErrDuplicateID or pid.ErrDuplicateURI. It returns nil for any other
// error.
func duplicateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if pgErr.ConstraintName == "pids_pkey" {
			return pid.ErrDuplicateID
		}
		if pgErr.TableName == "pids" || pgErr.ConstraintName == "idx_pids_uri" {
			return pid.ErrDuplicateURI
		}
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		msg := sqliteErr.Error()
		switch {
		case strings.Contains(msg, "pids.id"):
			return pid.ErrDuplicateID
		case strings.Contains(msg, "pids.uri"):
			return pid.ErrDuplicateURI
		}
		return nil
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pid.ErrDuplicateURI
	}
	return nil
}
