package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/metrics"
	"github.com/serroba/shortlinks/internal/ratelimit"
	"go.uber.org/zap"
)

// UserService manages password credentials.
type UserService interface {
	Register(ctx context.Context, username, password string) error
	Authenticate(ctx context.Context, username, password string) (auth.Identity, error)
	ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error
}

// TokenIssuer signs bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(subject string) (string, error)
	TTL() time.Duration
}

// UserHandler handles account operations.
type UserHandler struct {
	users    UserService
	tokens   TokenIssuer
	attempts ratelimit.Limiter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewUserHandler creates a user handler. attempts bounds login attempts per
// username and may be nil, as may m.
func NewUserHandler(
	users UserService,
	tokens TokenIssuer,
	attempts ratelimit.Limiter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *UserHandler {
	return &UserHandler{
		users:    users,
		tokens:   tokens,
		attempts: attempts,
		metrics:  m,
		logger:   logger,
	}
}

func (h *UserHandler) Register(ctx context.Context, req *RegisterRequest) (*MessageResponse, error) {
	if err := h.users.Register(ctx, req.Body.Username, req.Body.Password); err != nil {
		return nil, toHTTPError(h.logger, "register", err)
	}

	resp := &MessageResponse{}
	resp.Body.Message = "user created"

	return resp, nil
}

func (h *UserHandler) ChangePassword(ctx context.Context, req *ChangePasswordRequest) (*MessageResponse, error) {
	err := h.users.ChangePassword(ctx, req.Body.Username, req.Body.OldPassword, req.Body.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialRejected) {
			h.metrics.CredentialRejected()
		}

		return nil, toHTTPError(h.logger, "change_password", err)
	}

	resp := &MessageResponse{}
	resp.Body.Message = "password updated"

	return resp, nil
}

func (h *UserHandler) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if h.attempts != nil {
		allowed, err := h.attempts.Allow(ctx, req.Body.Username)
		if err != nil {
			return nil, toHTTPError(h.logger, "login", err)
		}

		if !allowed {
			h.logger.Warn("login attempts exceeded", zap.String("username", req.Body.Username))

			return nil, huma.Error429TooManyRequests("too many login attempts")
		}
	}

	identity, err := h.users.Authenticate(ctx, req.Body.Username, req.Body.Password)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialRejected) {
			h.metrics.CredentialRejected()

			return nil, huma.Error403Forbidden("forbidden")
		}

		return nil, toHTTPError(h.logger, "login", err)
	}

	tok, err := h.tokens.Issue(identity.Username)
	if err != nil {
		return nil, toHTTPError(h.logger, "login", err)
	}

	resp := &LoginResponse{}
	resp.Body.Token = tok
	resp.Body.ExpiresIn = int64(h.tokens.TTL() / time.Second)

	return resp, nil
}
