package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConfig_DSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "ceres", Password: "secret", DBName: "ceres"}
	assert.Equal(t, "host=db port=5432 user=ceres password=secret dbname=ceres sslmode=disable", cfg.DSN())

	cfg.SSLMode = "require"
	assert.Contains(t, cfg.DSN(), "sslmode=require")
}

func TestApplyPool_Defaults(t *testing.T) {
	db, err := gorm.Open(sqliteMemory(), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, applyPool(db, Config{}))

	stats, err := GetPoolStats(db)
	require.NoError(t, err)
	assert.Equal(t, defaultMaxOpenConns, stats.MaxOpenConnections)
}

func TestApplyPool_Custom(t *testing.T) {
	db, err := gorm.Open(sqliteMemory(), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, applyPool(db, Config{MaxOpenConns: 50, MaxIdleConns: 5}))

	stats, err := GetPoolStats(db)
	require.NoError(t, err)
	assert.Equal(t, 50, stats.MaxOpenConnections)
}

func TestPing(t *testing.T) {
	db, err := gorm.Open(sqliteMemory(), &gorm.Config{})
	require.NoError(t, err)

	assert.NoError(t, Ping(context.Background(), db))
}

func TestConnectWithRetry_GivesUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Nothing listens on port 1.
	cfg := Config{Host: "127.0.0.1", Port: 1, User: "x", DBName: "x"}
	_, err := ConnectWithRetry(ctx, cfg, hclog.NewNullLogger(), 500*time.Millisecond)
	assert.Error(t, err)
}

func TestGormLogger(t *testing.T) {
	var buf bytes.Buffer
	log := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Debug})
	gl := NewGormLogger(log)
	fc := func() (string, int64) { return "SELECT 1", 1 }

	t.Run("query failure is an error", func(t *testing.T) {
		buf.Reset()
		gl.Trace(context.Background(), time.Now(), fc, errors.New("boom"))
		assert.Contains(t, buf.String(), "[ERROR]")
		assert.Contains(t, buf.String(), "database query failed")
	})

	t.Run("record not found is debug", func(t *testing.T) {
		buf.Reset()
		gl.Trace(context.Background(), time.Now(), fc, gorm.ErrRecordNotFound)
		assert.NotContains(t, buf.String(), "[ERROR]")
		assert.Contains(t, buf.String(), "[DEBUG]")
	})

	t.Run("slow query warns", func(t *testing.T) {
		buf.Reset()
		gl.Trace(context.Background(), time.Now().Add(-time.Second), fc, nil)
		assert.Contains(t, buf.String(), "slow database query")
	})

	t.Run("silent mode logs nothing", func(t *testing.T) {
		buf.Reset()
		gl.LogMode(logger.Silent).Trace(context.Background(), time.Now(), fc, errors.New("boom"))
		assert.Empty(t, buf.String())
	})
}

func sqliteMemory() gorm.Dialector {
	return sqlite.Open(":memory:")
}
