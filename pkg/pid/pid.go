package pid

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no live Pid matches the requested id or uri.
	ErrNotFound = errors.New("pid not found")

	// ErrDuplicateURI is returned when the uri is already bound to another id.
	ErrDuplicateURI = errors.New("uri is already registered")

	// ErrDuplicateID is returned by Import when the id is already in use.
	ErrDuplicateID = errors.New("pid id is already registered")

	// ErrInvalid is returned when the input fails validation.
	ErrInvalid = errors.New("invalid pid")
)

// Pid is a persistent identifier bound to the current URI of a resource.
type Pid struct {
	ID        UUID      `json:"id"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists the bidirectional id <-> uri mapping.
//
// Implementations must enforce uniqueness of both id and uri themselves, so
// that of two concurrent Create calls with the same uri exactly one succeeds
// and the other returns ErrDuplicateURI.
type Store interface {
	// Create generates a fresh id for uri and persists the pair.
	Create(ctx context.Context, uri string) (*Pid, error)

	// Import persists p keeping its id.
	Import(ctx context.Context, p Pid) (*Pid, error)

	GetByID(ctx context.Context, id UUID) (*Pid, error)
	GetByURI(ctx context.Context, uri string) (*Pid, error)

	// Delete removes both directions of the mapping.
	Delete(ctx context.Context, id UUID) error
}

// IDGenerator returns a new identifier for Store.Create.
type IDGenerator func() UUID

// Options holds the settings shared by all Store implementations.
type Options struct {
	NewID IDGenerator
	Now   func() time.Time
}

// Option configures a Store.
type Option func(*Options)

// WithIDGenerator overrides how Create assigns identifiers.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *Options) {
		o.NewID = gen
	}
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		o.Now = now
	}
}

// NewOptions applies opts over the defaults: random v4 ids and the current UTC
// time truncated to microseconds, which every backend can store losslessly.
func NewOptions(opts ...Option) Options {
	o := Options{
		NewID: NewUUID,
		Now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
