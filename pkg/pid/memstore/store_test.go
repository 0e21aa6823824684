package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairspace/ceres/pkg/pid"
	"github.com/fairspace/ceres/pkg/pid/pidtest"
)

func TestStore(t *testing.T) {
	pidtest.RunStoreTests(t, func(t *testing.T, opts ...pid.Option) pid.Store {
		return New(opts...)
	})
}

func TestStore_Len(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, 0, s.Len())

	p, err := s.Create(ctx, "https://example.com/a")
	require.NoError(t, err)
	_, err = s.Create(ctx, "https://example.com/b")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Delete(ctx, p.ID))
	assert.Equal(t, 1, s.Len())
}
