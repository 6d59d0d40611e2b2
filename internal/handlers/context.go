// Package handlers exposes the link and user operations over HTTP.
package handlers

import "context"

// MetadataAuth is the operation metadata key holding an AuthMode.
const MetadataAuth = "auth"

// AuthMode states whether an operation needs an authenticated caller.
type AuthMode int

const (
	// AuthNone ignores the Authorization header.
	AuthNone AuthMode = iota
	// AuthOptional resolves the caller when a valid token is present.
	AuthOptional
	// AuthRequired rejects requests without a valid token.
	AuthRequired
)

type subjectKey struct{}

// ContextWithSubject stores the authenticated username in ctx.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the authenticated username, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey{}).(string)

	return subject, ok && subject != ""
}

type requestMetaKey struct{}

// RequestMeta holds HTTP request metadata for analytics and logging.
type RequestMeta struct {
	RequestID string
	ClientIP  string
	UserAgent string
	Referrer  string
}

// ContextWithRequestMeta adds request metadata to context.
func ContextWithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFromContext extracts request metadata from context.
func RequestMetaFromContext(ctx context.Context) RequestMeta {
	if v, ok := ctx.Value(requestMetaKey{}).(RequestMeta); ok {
		return v
	}

	return RequestMeta{}
}
