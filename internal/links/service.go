package links

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/serroba/shortlinks/internal/idgen"
	"go.uber.org/zap"
)

// maxCreateAttempts bounds retries when a generated id is already stored,
// which can happen after a restart within the same second.
const maxCreateAttempts = 5

// RedirectPolicy controls who may resolve a link.
type RedirectPolicy string

const (
	// RedirectPublic lets any caller, authenticated or not, resolve a link.
	RedirectPublic RedirectPolicy = "public"
	// RedirectOwnerOnly restricts resolution to the link owner.
	RedirectOwnerOnly RedirectPolicy = "owner"
)

// ParseRedirectPolicy converts a configuration value to a RedirectPolicy.
func ParseRedirectPolicy(s string) (RedirectPolicy, error) {
	switch p := RedirectPolicy(s); p {
	case RedirectPublic, RedirectOwnerOnly:
		return p, nil
	default:
		return "", fmt.Errorf("unknown redirect policy %q", s)
	}
}

// Option configures a Service.
type Option func(*Service)

// WithRedirectPolicy sets who may resolve links.
func WithRedirectPolicy(p RedirectPolicy) Option {
	return func(s *Service) {
		s.redirect = p
	}
}

// WithClock replaces the wall clock used for created and accessed times.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service applies ownership rules on top of a Repository.
type Service struct {
	repo     Repository
	ids      IDGenerator
	redirect RedirectPolicy
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates a link service.
func NewService(repo Repository, ids IDGenerator, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		ids:      ids,
		redirect: RedirectPublic,
		now:      time.Now,
		logger:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RedirectPolicy returns the configured redirect policy.
func (s *Service) RedirectPolicy() RedirectPolicy {
	return s.redirect
}

// Create stores a new link owned by owner.
func (s *Service) Create(ctx context.Context, owner, target string) (*Link, error) {
	if owner == "" {
		return nil, ErrForbidden
	}

	if err := ValidateTarget(target); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		id, err := s.ids.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate id: %w", err)
		}

		link := &Link{
			ID:        id,
			Owner:     owner,
			Target:    target,
			CreatedAt: s.now().UTC(),
		}

		err = s.repo.Insert(ctx, link)
		if err == nil {
			return link, nil
		}

		if !errors.Is(err, ErrIDConflict) {
			return nil, fmt.Errorf("failed to store link: %w", err)
		}

		s.logger.Warn("generated id already in use",
			zap.String("id", id.String()),
			zap.Int("attempt", attempt),
		)
	}

	return nil, ErrIDExhausted
}

// Resolve records an access to the link and returns it. caller is empty for
// anonymous requests.
func (s *Service) Resolve(ctx context.Context, caller string, id idgen.ID) (*Link, error) {
	return s.repo.Modify(ctx, id, func(l *Link) error {
		if s.redirect == RedirectOwnerOnly && l.Owner != caller {
			return ErrForbidden
		}

		now := s.now().UTC()
		l.Clicks++
		l.LastAccessed = &now

		return nil
	})
}

// Update changes the target of a link owned by owner.
func (s *Service) Update(ctx context.Context, owner string, id idgen.ID, target string) error {
	if err := ValidateTarget(target); err != nil {
		return err
	}

	_, err := s.repo.Modify(ctx, id, func(l *Link) error {
		if l.Owner != owner {
			return ErrForbidden
		}

		l.Target = target

		return nil
	})

	return err
}

// Delete removes a link owned by owner together with its stats.
func (s *Service) Delete(ctx context.Context, owner string, id idgen.ID) error {
	return s.repo.Remove(ctx, id, func(l *Link) error {
		if l.Owner != owner {
			return ErrForbidden
		}

		return nil
	})
}

// List returns the ids of every link owned by owner, in no particular order.
func (s *Service) List(ctx context.Context, owner string) ([]idgen.ID, error) {
	return s.repo.ListByOwner(ctx, owner)
}

// DeleteAll removes every link owned by owner and returns the removed ids.
func (s *Service) DeleteAll(ctx context.Context, owner string) ([]idgen.ID, error) {
	return s.repo.RemoveByOwner(ctx, owner)
}

// Stats returns the access summary of a link owned by owner.
func (s *Service) Stats(ctx context.Context, owner string, id idgen.ID) (Stats, error) {
	l, err := s.repo.Get(ctx, id)
	if err != nil {
		return Stats{}, err
	}

	if l.Owner != owner {
		return Stats{}, ErrForbidden
	}

	return Stats{
		Clicks:       l.Clicks,
		CreatedAt:    l.CreatedAt,
		LastAccessed: l.LastAccessed,
	}, nil
}
