// Package memstore is an in-process pid.Store. Contents are lost on restart;
// it serves development setups and tests.
package memstore

import (
	"context"
	"sync"

	"github.com/fairspace/ceres/pkg/pid"
)

// Store keeps both directions of the mapping in maps guarded by one lock.
type Store struct {
	mu    sync.RWMutex
	byID  map[pid.UUID]pid.Pid
	byURI map[string]pid.UUID
	opts  pid.Options
}

var _ pid.Store = (*Store)(nil)

// New returns an empty Store.
func New(opts ...pid.Option) *Store {
	return &Store{
		byID:  make(map[pid.UUID]pid.Pid),
		byURI: make(map[string]pid.UUID),
		opts:  pid.NewOptions(opts...),
	}
}

// Create implements pid.Store.
func (s *Store) Create(ctx context.Context, uri string) (*pid.Pid, error) {
	return s.insert(pid.Pid{
		ID:  s.opts.NewID(),
		URI: uri,
	})
}

// Import implements pid.Store.
func (s *Store) Import(ctx context.Context, p pid.Pid) (*pid.Pid, error) {
	return s.insert(pid.Pid{
		ID:  p.ID,
		URI: p.URI,
	})
}

func (s *Store) insert(p pid.Pid) (*pid.Pid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byURI[p.URI]; ok {
		return nil, pid.ErrDuplicateURI
	}
	if _, ok := s.byID[p.ID]; ok {
		return nil, pid.ErrDuplicateID
	}

	p.CreatedAt = s.opts.Now()
	s.byID[p.ID] = p
	s.byURI[p.URI] = p.ID

	return &p, nil
}

// GetByID implements pid.Store.
func (s *Store) GetByID(ctx context.Context, id pid.UUID) (*pid.Pid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, pid.ErrNotFound
	}
	return &p, nil
}

// GetByURI implements pid.Store.
func (s *Store) GetByURI(ctx context.Context, uri string) (*pid.Pid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byURI[uri]
	if !ok {
		return nil, pid.ErrNotFound
	}
	p := s.byID[id]
	return &p, nil
}

// Delete implements pid.Store.
func (s *Store) Delete(ctx context.Context, id pid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return pid.ErrNotFound
	}
	delete(s.byID, id)
	delete(s.byURI, p.URI)

	return nil
}

// Len returns the number of live records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
