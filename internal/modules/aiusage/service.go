package aiusage

import (
	"context"
	"errors"
	"time"
)

type Repository interface {
	UseToken(ctx context.Context, uid string, now time.Time) error
	EnsureUser(ctx context.Context, uid string, now time.Time) error
	Remaining(ctx context.Context, uid string, now time.Time) (int, error)
}

// Service meters document extractions; it satisfies account.Quota.
type Service struct {
	store Repository
	now   func() time.Time
}

// NewService creates a Service backed by the given Repository.
func NewService(store Repository) *Service {
	return &Service{store: store, now: time.Now}
}

// UseToken deducts one token from the user's monthly allowance.
// If the user row does not exist yet it is initialised and the token is immediately consumed.
func (s *Service) UseToken(ctx context.Context, uid string) error {
	now := s.now()
	err := s.store.UseToken(ctx, uid, now)
	if !errors.Is(err, ErrInsufficientTokens) {
		return err
	}

	// Row may be missing: try to create it, then retry the deduction once.
	if initErr := s.store.EnsureUser(ctx, uid, now); initErr != nil {
		return initErr
	}
	return s.store.UseToken(ctx, uid, now)
}

func (s *Service) Remaining(ctx context.Context, uid string) (int, error) {
	return s.store.Remaining(ctx, uid, s.now())
}
