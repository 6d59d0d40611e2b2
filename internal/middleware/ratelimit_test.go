package middleware_test

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/serroba/shortlinks/internal/handlers"
	"github.com/serroba/shortlinks/internal/middleware"
	"github.com/serroba/shortlinks/internal/ratelimit"
	"github.com/serroba/shortlinks/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testHostAddr  = "192.168.1.1:12345"
	testUserAgent = "TestAgent/1.0"
)

var errMultipartNotSupported = errors.New("multipart not supported in mock")

func newTestAPI() huma.API {
	return humachi.New(chi.NewMux(), huma.DefaultConfig("Test", "1.0.0"))
}

// mockHumaContext implements huma.Context for testing.
type mockHumaContext struct {
	ctx        context.Context
	headers    map[string]string
	host       string
	written    []byte
	statusCode int
	method     string
	operation  *huma.Operation
}

func newMockHumaContext() *mockHumaContext {
	return &mockHumaContext{
		ctx:     context.Background(),
		headers: map[string]string{"User-Agent": testUserAgent},
		host:    testHostAddr,
		method:  http.MethodGet,
	}
}

func (m *mockHumaContext) Operation() *huma.Operation            { return m.operation }
func (m *mockHumaContext) Context() context.Context              { return m.ctx }
func (m *mockHumaContext) TLS() *tls.ConnectionState             { return nil }
func (m *mockHumaContext) Version() huma.ProtoVersion            { return huma.ProtoVersion{} }
func (m *mockHumaContext) Method() string                        { return m.method }
func (m *mockHumaContext) Host() string                          { return m.host }
func (m *mockHumaContext) RemoteAddr() string                    { return m.host }
func (m *mockHumaContext) URL() url.URL                          { return url.URL{} }
func (m *mockHumaContext) Param(_ string) string                 { return "" }
func (m *mockHumaContext) Query(_ string) string                 { return "" }
func (m *mockHumaContext) Header(name string) string             { return m.headers[name] }
func (m *mockHumaContext) EachHeader(_ func(name, value string)) {}
func (m *mockHumaContext) BodyReader() io.Reader                 { return nil }
func (m *mockHumaContext) GetMultipartForm() (*multipart.Form, error) {
	return nil, errMultipartNotSupported
}
func (m *mockHumaContext) SetReadDeadline(_ time.Time) error { return nil }
func (m *mockHumaContext) SetStatus(code int)                { m.statusCode = code }
func (m *mockHumaContext) Status() int                       { return m.statusCode }
func (m *mockHumaContext) AppendHeader(_, _ string)          {}
func (m *mockHumaContext) SetHeader(_, _ string)             {}
func (m *mockHumaContext) BodyWriter() io.Writer             { return &mockBodyWriter{ctx: m} }

type mockBodyWriter struct {
	ctx *mockHumaContext
}

func (w *mockBodyWriter) Write(p []byte) (int, error) {
	w.ctx.written = append(w.ctx.written, p...)

	return len(p), nil
}

type mockScopeResolver struct {
	scopes []ratelimit.Scope
}

func (m *mockScopeResolver) Resolve(_ huma.Context) []ratelimit.Scope {
	return m.scopes
}

type failingRateStore struct{}

func (failingRateStore) Record(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func newRateLimiter(policy *ratelimit.Policy, s ratelimit.Store) func(huma.Context, func(huma.Context)) {
	api := newTestAPI()
	limiter := ratelimit.NewPolicyLimiter(s, policy)

	return middleware.PolicyRateLimiter(api, limiter, ratelimit.NewOperationScopeResolver(), zap.NewNop())
}

// run passes a fresh request from the same client through mw and reports
// whether it reached next.
func run(mw func(huma.Context, func(huma.Context)), ctx *mockHumaContext) bool {
	called := false

	mw(ctx, func(_ huma.Context) { called = true })

	return called
}

func TestPolicyRateLimiter(t *testing.T) {
	t.Run("allows requests under the limit", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 2, time.Minute).Build()
		mw := newRateLimiter(policy, store.NewRateLimitMemoryStore())

		assert.True(t, run(mw, newMockHumaContext()))
		assert.True(t, run(mw, newMockHumaContext()))
	})

	t.Run("returns 429 with the exceeded scope", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeWrite, 1, time.Minute).Build()
		mw := newRateLimiter(policy, store.NewRateLimitMemoryStore())

		first := newMockHumaContext()
		first.method = http.MethodPost
		require.True(t, run(mw, first))

		second := newMockHumaContext()
		second.method = http.MethodPost

		assert.False(t, run(mw, second))
		assert.Equal(t, http.StatusTooManyRequests, second.statusCode)
		assert.Contains(t, string(second.written), "write scope")
		assert.Contains(t, string(second.written), "2/1")
	})

	t.Run("read and write scopes are counted separately", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().
			AddLimit(ratelimit.ScopeRead, 1, time.Minute).
			AddLimit(ratelimit.ScopeWrite, 1, time.Minute).
			Build()
		mw := newRateLimiter(policy, store.NewRateLimitMemoryStore())

		assert.True(t, run(mw, newMockHumaContext()))

		write := newMockHumaContext()
		write.method = http.MethodDelete
		assert.True(t, run(mw, write))

		assert.False(t, run(mw, newMockHumaContext()))
	})

	t.Run("anonymous clients are told apart by IP and user agent", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newRateLimiter(policy, store.NewRateLimitMemoryStore())

		require.True(t, run(mw, newMockHumaContext()))

		otherIP := newMockHumaContext()
		otherIP.host = "10.0.0.9:5555"
		assert.True(t, run(mw, otherIP))

		otherAgent := newMockHumaContext()
		otherAgent.headers["User-Agent"] = "curl/8.0"
		assert.True(t, run(mw, otherAgent))

		assert.False(t, run(mw, newMockHumaContext()))
	})

	t.Run("authenticated callers are counted per user", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newRateLimiter(policy, store.NewRateLimitMemoryStore())

		alice := newMockHumaContext()
		alice.ctx = handlers.ContextWithSubject(context.Background(), "alice")
		require.True(t, run(mw, alice))

		// Same user from another address shares the counter.
		aliceElsewhere := newMockHumaContext()
		aliceElsewhere.host = "10.0.0.9:5555"
		aliceElsewhere.ctx = handlers.ContextWithSubject(context.Background(), "alice")
		assert.False(t, run(mw, aliceElsewhere))

		// Anonymous traffic from alice's address is not affected.
		assert.True(t, run(mw, newMockHumaContext()))
	})

	t.Run("metadata scope replaces the method scope", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeAuth, 1, time.Minute).Build()
		mw := newRateLimiter(policy, store.NewRateLimitMemoryStore())
		op := &huma.Operation{
			Method:   http.MethodPost,
			Path:     "/users/login",
			Metadata: map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{Scope: ratelimit.ScopeAuth}},
		}

		first := newMockHumaContext()
		first.method, first.operation = http.MethodPost, op
		require.True(t, run(mw, first))

		second := newMockHumaContext()
		second.method, second.operation = http.MethodPost, op
		assert.False(t, run(mw, second))
		assert.Contains(t, string(second.written), "auth scope")
	})

	t.Run("custom limits replace the policy for the route", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newRateLimiter(policy, store.NewRateLimitMemoryStore())
		op := &huma.Operation{
			Method: http.MethodGet,
			Path:   "/{id}",
			Metadata: map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{
				Limits: []ratelimit.LimitConfig{{Window: time.Minute, Max: 3}},
			}},
		}

		for range 3 {
			ctx := newMockHumaContext()
			ctx.operation = op
			require.True(t, run(mw, ctx))
		}

		ctx := newMockHumaContext()
		ctx.operation = op

		assert.False(t, run(mw, ctx))
		assert.Equal(t, http.StatusTooManyRequests, ctx.statusCode)
		assert.Contains(t, string(ctx.written), "4/3")
	})

	t.Run("disabled endpoints are never limited", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newRateLimiter(policy, failingRateStore{})
		op := &huma.Operation{
			Path:     "/health",
			Metadata: map[string]any{ratelimit.MetadataKey: ratelimit.EndpointConfig{Disabled: true}},
		}

		for range 5 {
			ctx := newMockHumaContext()
			ctx.operation = op
			assert.True(t, run(mw, ctx))
		}
	})

	t.Run("store failures return 500", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeGlobal, 1, time.Minute).Build()
		mw := newRateLimiter(policy, failingRateStore{})

		ctx := newMockHumaContext()

		assert.False(t, run(mw, ctx))
		assert.Equal(t, http.StatusInternalServerError, ctx.statusCode)
	})

	t.Run("uses the supplied resolver", func(t *testing.T) {
		policy := ratelimit.NewPolicyBuilder().AddLimit(ratelimit.ScopeAuth, 1, time.Minute).Build()
		limiter := ratelimit.NewPolicyLimiter(store.NewRateLimitMemoryStore(), policy)
		resolver := &mockScopeResolver{scopes: []ratelimit.Scope{ratelimit.ScopeAuth}}
		mw := middleware.PolicyRateLimiter(newTestAPI(), limiter, resolver, zap.NewNop())

		require.True(t, run(mw, newMockHumaContext()))
		assert.False(t, run(mw, newMockHumaContext()))
	})
}
