package pid

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-hclog"
)

// MaxURILength is the longest uri the service accepts, in bytes. Every store
// must be able to index it: DynamoDB caps partition keys at 2048 bytes and
// dynamostore prefixes the uri with "uri#".
const MaxURILength = 2044

// Service is the entry point for callers. It validates input and applies the
// identifier policy before delegating to a Store.
type Service struct {
	store  Store
	logger hclog.Logger
}

// NewService returns a Service over store. A nil logger discards output.
func NewService(store Store, logger hclog.Logger) *Service {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Service{
		store:  store,
		logger: logger.Named("pid"),
	}
}

// Add registers candidate.URI under a freshly generated id. Any id set on
// candidate is discarded.
func (s *Service) Add(ctx context.Context, candidate Pid) (*Pid, error) {
	if err := validateURI(candidate.URI); err != nil {
		return nil, err
	}
	if !candidate.ID.IsZero() {
		s.logger.Debug("discarding caller-supplied id",
			"id", candidate.ID,
			"uri", candidate.URI,
		)
	}

	p, err := s.store.Create(ctx, candidate.URI)
	if err != nil {
		if !errors.Is(err, ErrDuplicateURI) {
			s.logger.Error("error creating pid", "uri", candidate.URI, "error", err)
		}
		return nil, err
	}

	s.logger.Info("registered pid", "id", p.ID, "uri", p.URI)
	return p, nil
}

// Import registers p keeping its id. It exists for moving identifiers over
// from another system; regular callers use Add.
func (s *Service) Import(ctx context.Context, p Pid) (*Pid, error) {
	if p.ID.IsZero() {
		return nil, fmt.Errorf("%w: id: cannot be blank", ErrInvalid)
	}
	if err := validateURI(p.URI); err != nil {
		return nil, err
	}

	imported, err := s.store.Import(ctx, p)
	if err != nil {
		return nil, err
	}

	s.logger.Info("imported pid", "id", imported.ID, "uri", imported.URI)
	return imported, nil
}

// FindByID returns the Pid with the given id or ErrNotFound.
func (s *Service) FindByID(ctx context.Context, id UUID) (*Pid, error) {
	return s.store.GetByID(ctx, id)
}

// FindByURI returns the Pid bound to uri or ErrNotFound.
func (s *Service) FindByURI(ctx context.Context, uri string) (*Pid, error) {
	if err := validation.Validate(uri, validation.Required); err != nil {
		return nil, fmt.Errorf("%w: uri: %v", ErrInvalid, err)
	}
	return s.store.GetByURI(ctx, uri)
}

// Delete removes the Pid with the given id. Deleting an unknown id returns
// ErrNotFound.
func (s *Service) Delete(ctx context.Context, id UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("error deleting pid", "id", id, "error", err)
		}
		return err
	}

	s.logger.Info("deleted pid", "id", id)
	return nil
}

func validateURI(uri string) error {
	if err := validation.Validate(uri,
		validation.Required,
		validation.Length(1, MaxURILength),
		validation.By(absoluteURI),
	); err != nil {
		return fmt.Errorf("%w: uri: %v", ErrInvalid, err)
	}
	return nil
}

func absoluteURI(value interface{}) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("must be a valid URI")
	}
	if !u.IsAbs() {
		return errors.New("must be an absolute URI")
	}
	return nil
}
