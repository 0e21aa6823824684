package db

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairspace/ceres/internal/config"
	"github.com/fairspace/ceres/pkg/pid/memstore"
)

func TestNewPidStore_Memory(t *testing.T) {
	cfg, err := config.NewConfig("")
	require.NoError(t, err)
	cfg.Store.Backend = config.BackendMemory

	s, err := NewPidStore(context.Background(), cfg, hclog.NewNullLogger())
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, s.Store)
	assert.Nil(t, s.DB)
	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

func TestNewPidStore_Unsupported(t *testing.T) {
	cfg, err := config.NewConfig("")
	require.NoError(t, err)
	cfg.Store.Backend = "cassandra"

	_, err = NewPidStore(context.Background(), cfg, hclog.NewNullLogger())
	assert.ErrorContains(t, err, "unsupported store backend")
}
