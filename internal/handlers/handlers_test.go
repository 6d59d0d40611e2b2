package handlers_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/handlers"
	"github.com/serroba/shortlinks/internal/idgen"
	"github.com/serroba/shortlinks/internal/links"
	"github.com/serroba/shortlinks/internal/store"
	"github.com/serroba/shortlinks/internal/token"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testBaseURL = "http://localhost:8888"

var errPublish = errors.New("publish error")

// recorder captures published analytics events.
type recorder struct {
	mu       sync.Mutex
	created  []analytics.LinkCreatedEvent
	accessed []analytics.LinkAccessedEvent
	deleted  []analytics.LinkDeletedEvent
	err      error
}

func (r *recorder) publishers() *analytics.Publishers {
	return &analytics.Publishers{
		Created: func(_ context.Context, e *analytics.LinkCreatedEvent) error {
			r.mu.Lock()
			defer r.mu.Unlock()

			r.created = append(r.created, *e)

			return r.err
		},
		Accessed: func(_ context.Context, e *analytics.LinkAccessedEvent) error {
			r.mu.Lock()
			defer r.mu.Unlock()

			r.accessed = append(r.accessed, *e)

			return r.err
		},
		Deleted: func(_ context.Context, e *analytics.LinkDeletedEvent) error {
			r.mu.Lock()
			defer r.mu.Unlock()

			r.deleted = append(r.deleted, *e)

			return r.err
		},
	}
}

func newLinkService(t *testing.T, opts ...links.Option) *links.Service {
	t.Helper()

	gen, err := idgen.New(1)
	require.NoError(t, err)

	return links.NewService(store.NewMemoryLinkStore(), gen, opts...)
}

func newLinkHandler(t *testing.T, rec *recorder, opts ...links.Option) *handlers.LinkHandler {
	t.Helper()

	return handlers.NewLinkHandler(newLinkService(t, opts...), testBaseURL, rec.publishers(), nil, zap.NewNop())
}

func newUserService(t *testing.T) *auth.Service {
	t.Helper()

	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	return auth.NewService(store.NewMemoryCredentialStore(), hasher, zap.NewNop())
}

func newCodec(t *testing.T) *token.Codec {
	t.Helper()

	codec, err := token.NewCodec([]byte("test-secret"))
	require.NoError(t, err)

	return codec
}

func as(owner string) context.Context {
	return handlers.ContextWithSubject(context.Background(), owner)
}

func statusOf(t *testing.T, err error) int {
	t.Helper()

	var se huma.StatusError

	require.ErrorAs(t, err, &se)

	return se.GetStatus()
}
