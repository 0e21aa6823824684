// Package pidtest holds the behavior every pid.Store implementation must share.
package pidtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairspace/ceres/pkg/pid"
)

// NewStoreFunc builds a fresh, empty store for a single test.
type NewStoreFunc func(t *testing.T, opts ...pid.Option) pid.Store

// SequentialIDs returns a generator yielding 00000000-0000-4000-8000-000000000001,
// ...-000000000002 and so on.
func SequentialIDs() pid.IDGenerator {
	var n atomic.Int64
	return func() pid.UUID {
		return pid.MustParseUUID(fmt.Sprintf("00000000-0000-4000-8000-%012d", n.Add(1)))
	}
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// RunStoreTests runs the shared store behavior against stores built by newStore.
func RunStoreTests(t *testing.T, newStore NewStoreFunc) {
	ctx := context.Background()
	const uri = "https://workspace.test.fairway.app/iri/collections/789/foo/bar"

	t.Run("create then get by uri", func(t *testing.T) {
		s := newStore(t)

		created, err := s.Create(ctx, uri)
		require.NoError(t, err)
		assert.False(t, created.ID.IsZero())
		assert.Equal(t, uri, created.URI)

		found, err := s.GetByURI(ctx, uri)
		require.NoError(t, err)
		assertSamePid(t, created, found)
	})

	t.Run("create then get by id", func(t *testing.T) {
		s := newStore(t)

		created, err := s.Create(ctx, uri)
		require.NoError(t, err)

		found, err := s.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assertSamePid(t, created, found)
	})

	t.Run("uses configured generator and clock", func(t *testing.T) {
		now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		s := newStore(t, pid.WithIDGenerator(SequentialIDs()), pid.WithClock(FixedClock(now)))

		created, err := s.Create(ctx, uri)
		require.NoError(t, err)
		assert.Equal(t, "00000000-0000-4000-8000-000000000001", created.ID.String())
		assert.True(t, now.Equal(created.CreatedAt))
	})

	t.Run("distinct uris get distinct ids", func(t *testing.T) {
		s := newStore(t)

		a, err := s.Create(ctx, uri)
		require.NoError(t, err)
		b, err := s.Create(ctx, uri+"/baz")
		require.NoError(t, err)
		assert.False(t, a.ID.Equal(b.ID))
	})

	t.Run("duplicate uri is rejected", func(t *testing.T) {
		s := newStore(t)

		first, err := s.Create(ctx, uri)
		require.NoError(t, err)

		_, err = s.Create(ctx, uri)
		assert.ErrorIs(t, err, pid.ErrDuplicateURI)

		// The original binding is untouched.
		found, err := s.GetByURI(ctx, uri)
		require.NoError(t, err)
		assert.True(t, first.ID.Equal(found.ID))
	})

	t.Run("id collision is reported", func(t *testing.T) {
		fixed := pid.MustParseUUID("af4bec86-5297-4521-89d7-13ca579f6fb2")
		s := newStore(t, pid.WithIDGenerator(func() pid.UUID { return fixed }))

		_, err := s.Create(ctx, uri)
		require.NoError(t, err)

		_, err = s.Create(ctx, uri+"/other")
		assert.ErrorIs(t, err, pid.ErrDuplicateID)

		_, err = s.GetByURI(ctx, uri+"/other")
		assert.ErrorIs(t, err, pid.ErrNotFound)
	})

	t.Run("unknown uri is not found", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Create(ctx, uri)
		require.NoError(t, err)

		_, err = s.GetByURI(ctx, uri+"/bat")
		assert.ErrorIs(t, err, pid.ErrNotFound)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetByID(ctx, pid.NewUUID())
		assert.ErrorIs(t, err, pid.ErrNotFound)
	})

	t.Run("delete removes both directions", func(t *testing.T) {
		s := newStore(t)

		created, err := s.Create(ctx, uri)
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, created.ID))

		_, err = s.GetByID(ctx, created.ID)
		assert.ErrorIs(t, err, pid.ErrNotFound)
		_, err = s.GetByURI(ctx, uri)
		assert.ErrorIs(t, err, pid.ErrNotFound)
	})

	t.Run("uri can be registered again after delete", func(t *testing.T) {
		s := newStore(t)

		first, err := s.Create(ctx, uri)
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, first.ID))

		second, err := s.Create(ctx, uri)
		require.NoError(t, err)
		assert.False(t, first.ID.Equal(second.ID))
	})

	t.Run("delete of unknown id is not found", func(t *testing.T) {
		s := newStore(t)

		err := s.Delete(ctx, pid.NewUUID())
		assert.ErrorIs(t, err, pid.ErrNotFound)
	})

	t.Run("delete twice is not found", func(t *testing.T) {
		s := newStore(t)

		created, err := s.Create(ctx, uri)
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, created.ID))

		err = s.Delete(ctx, created.ID)
		assert.ErrorIs(t, err, pid.ErrNotFound)
	})

	t.Run("import keeps the id", func(t *testing.T) {
		s := newStore(t)
		id := pid.MustParseUUID("af4bec86-5297-4521-89d7-13ca579f6fb2")

		imported, err := s.Import(ctx, pid.Pid{ID: id, URI: uri})
		require.NoError(t, err)
		assert.True(t, id.Equal(imported.ID))
		assert.False(t, imported.CreatedAt.IsZero())

		found, err := s.GetByURI(ctx, uri)
		require.NoError(t, err)
		assert.True(t, id.Equal(found.ID))
	})

	t.Run("import rejects duplicates", func(t *testing.T) {
		s := newStore(t)
		id := pid.MustParseUUID("af4bec86-5297-4521-89d7-13ca579f6fb2")

		_, err := s.Import(ctx, pid.Pid{ID: id, URI: uri})
		require.NoError(t, err)

		_, err = s.Import(ctx, pid.Pid{ID: id, URI: uri + "/other"})
		assert.ErrorIs(t, err, pid.ErrDuplicateID)

		_, err = s.Import(ctx, pid.Pid{ID: pid.NewUUID(), URI: uri})
		assert.ErrorIs(t, err, pid.ErrDuplicateURI)
	})

	t.Run("concurrent creates of one uri yield one pid", func(t *testing.T) {
		s := newStore(t)
		const workers = 8

		var (
			wg         sync.WaitGroup
			successes  atomic.Int32
			duplicates atomic.Int32
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Create(ctx, uri)
				switch {
				case err == nil:
					successes.Add(1)
				case assert.ErrorIs(t, err, pid.ErrDuplicateURI):
					duplicates.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), successes.Load())
		assert.Equal(t, int32(workers-1), duplicates.Load())
	})
}

func assertSamePid(t *testing.T, want, got *pid.Pid) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, want.ID.Equal(got.ID), "id: want %s, got %s", want.ID, got.ID)
	assert.Equal(t, want.URI, got.URI)
	assert.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Second)
	assert.Equal(t, time.UTC, got.CreatedAt.Location(), "createdAt must be UTC")
}
