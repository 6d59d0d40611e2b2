// Package links manages shortened links, each owned by exactly one user.
package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/serroba/shortlinks/internal/idgen"
)

var (
	ErrNotFound      = errors.New("link not found")
	ErrForbidden     = errors.New("link belongs to another user")
	ErrIDConflict    = errors.New("link id already in use")
	ErrIDExhausted   = errors.New("could not allocate a free link id")
	ErrInvalidTarget = errors.New("target must be an absolute http or https url")
)

// Link is a stored short link.
type Link struct {
	ID           idgen.ID
	Owner        string
	Target       string
	Clicks       int64
	CreatedAt    time.Time
	LastAccessed *time.Time
}

// Stats is the access summary of a link.
type Stats struct {
	Clicks       int64
	CreatedAt    time.Time
	LastAccessed *time.Time
}

// Clone returns a deep copy of l.
func (l *Link) Clone() *Link {
	c := *l
	if l.LastAccessed != nil {
		t := *l.LastAccessed
		c.LastAccessed = &t
	}

	return &c
}

// Repository persists links. Modify and Remove are atomic per id: fn sees the
// current record and nothing else can change it until fn returns.
type Repository interface {
	// Insert returns ErrIDConflict if the id is taken.
	Insert(ctx context.Context, link *Link) error
	Get(ctx context.Context, id idgen.ID) (*Link, error)
	// Modify applies fn to the stored link and saves the result. Owner and
	// CreatedAt are never changed. An error from fn aborts the write.
	Modify(ctx context.Context, id idgen.ID, fn func(*Link) error) (*Link, error)
	// Remove deletes the link if fn returns nil.
	Remove(ctx context.Context, id idgen.ID, fn func(*Link) error) error
	ListByOwner(ctx context.Context, owner string) ([]idgen.ID, error)
	// RemoveByOwner deletes every link of owner and returns the removed ids.
	RemoveByOwner(ctx context.Context, owner string) ([]idgen.ID, error)
}

// IDGenerator allocates link ids.
type IDGenerator interface {
	Generate() (idgen.ID, error)
}

// ValidateTarget checks that target is an absolute http or https url with a host.
func ValidateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidTarget
	}

	return nil
}
