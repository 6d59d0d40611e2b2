package middleware

import (
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/handlers"
	"github.com/serroba/shortlinks/internal/metrics"
	"go.uber.org/zap"
)

// TokenVerifier returns the subject of a valid bearer token.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Authenticate resolves the caller from the Authorization header, which may
// hold the raw token or "Bearer <token>". Operations marked AuthRequired
// answer 403 when the token is missing or invalid; AuthOptional operations
// continue anonymously.
func Authenticate(
	api huma.API,
	verifier TokenVerifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		mode := authMode(ctx)
		if mode == handlers.AuthNone {
			next(ctx)

			return
		}

		raw := bearerToken(ctx.Header("Authorization"))
		if raw == "" {
			if mode == handlers.AuthRequired {
				_ = huma.WriteErr(api, ctx, http.StatusForbidden, "forbidden")

				return
			}

			next(ctx)

			return
		}

		subject, err := verifier.Verify(raw)
		if err != nil {
			m.TokenRejected()
			logger.Debug("token rejected",
				zap.String("path", getOperationPath(ctx)),
				zap.Error(err),
			)

			if mode == handlers.AuthRequired {
				_ = huma.WriteErr(api, ctx, http.StatusForbidden, "forbidden")

				return
			}

			next(ctx)

			return
		}

		next(huma.WithContext(ctx, handlers.ContextWithSubject(ctx.Context(), subject)))
	}
}

func authMode(ctx huma.Context) handlers.AuthMode {
	op := ctx.Operation()
	if op == nil || op.Metadata == nil {
		return handlers.AuthNone
	}

	mode, _ := op.Metadata[handlers.MetadataAuth].(handlers.AuthMode)

	return mode
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)

	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(rest)
	}

	return header
}
