package handlers

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/shortlinks/internal/auth"
	"github.com/serroba/shortlinks/internal/links"
	"go.uber.org/zap"
)

// toHTTPError maps service errors to huma status errors. Anything not
// recognised is logged and reported as a bare 500.
func toHTTPError(logger *zap.Logger, op string, err error) error {
	switch {
	case errors.Is(err, links.ErrNotFound):
		return huma.Error404NotFound("short url not found")
	case errors.Is(err, links.ErrForbidden):
		return huma.Error403Forbidden("forbidden")
	case errors.Is(err, links.ErrInvalidTarget):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, auth.ErrDuplicateCredential):
		return huma.Error409Conflict("username already registered")
	case errors.Is(err, auth.ErrInvalidCredential):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, auth.ErrCredentialRejected):
		return huma.Error403Forbidden("forbidden")
	}

	logger.Error("request failed", zap.String("operation", op), zap.Error(err))

	return huma.Error500InternalServerError("internal error")
}
