package gormstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fairspace/ceres/pkg/events"
	"github.com/fairspace/ceres/pkg/pid"
	"github.com/fairspace/ceres/pkg/pid/pidtest"
)

// setupTestDB creates an in-memory SQLite database for testing. A single
// connection keeps every statement on the same in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func TestStore_SQLite(t *testing.T) {
	pidtest.RunStoreTests(t, func(t *testing.T, opts ...pid.Option) pid.Store {
		return New(setupTestDB(t), WithPidOptions(opts...))
	})
}

func TestStore_Outbox(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := New(db, WithOutbox(true))

	created, err := s.Create(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, created.ID))

	var entries []events.OutboxEntry
	require.NoError(t, db.Order("id").Find(&entries).Error)
	require.Len(t, entries, 2)

	assert.Equal(t, events.PidCreated, entries[0].EventType)
	assert.Equal(t, events.PidDeleted, entries[1].EventType)
	for _, e := range entries {
		assert.True(t, created.ID.Equal(e.PidID))
		assert.Equal(t, created.URI, e.URI)
		assert.Equal(t, events.StatusPending, e.Status)
	}
}

func TestStore_OutboxRollsBackWithPid(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := New(db, WithOutbox(true))

	_, err := s.Create(ctx, "https://example.com/a")
	require.NoError(t, err)

	_, err = s.Create(ctx, "https://example.com/a")
	require.ErrorIs(t, err, pid.ErrDuplicateURI)

	err = s.Delete(ctx, pid.NewUUID())
	require.ErrorIs(t, err, pid.ErrNotFound)

	count, err := events.CountByStatus(db, events.StatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStore_NoOutboxByDefault(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	s := New(db)

	_, err := s.Create(ctx, "https://example.com/a")
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&events.OutboxEntry{}).Count(&count).Error)
	assert.Zero(t, count)
}
