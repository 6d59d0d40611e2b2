// Package store holds analytics.Store implementations.
package store

import (
	"context"

	"github.com/serroba/shortlinks/internal/analytics"
	"github.com/serroba/shortlinks/internal/messaging"
	"go.uber.org/zap"
)

// Logging is an analytics.Store that writes every event to the log.
type Logging struct {
	logger *zap.Logger
}

// NewLogging creates a logging analytics store.
func NewLogging(logger *zap.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) SaveLinkCreated(ctx context.Context, event *analytics.LinkCreatedEvent) error {
	l.with(ctx).Info("link created event received",
		zap.String("id", event.ID),
		zap.String("owner", event.Owner),
		zap.String("target", event.Target),
		zap.Time("createdAt", event.CreatedAt),
	)

	return nil
}

func (l *Logging) SaveLinkAccessed(ctx context.Context, event *analytics.LinkAccessedEvent) error {
	l.with(ctx).Info("link accessed event received",
		zap.String("id", event.ID),
		zap.Int64("clicks", event.Clicks),
		zap.Time("accessedAt", event.AccessedAt),
		zap.String("referrer", event.Referrer),
	)

	return nil
}

func (l *Logging) SaveLinkDeleted(ctx context.Context, event *analytics.LinkDeletedEvent) error {
	l.with(ctx).Info("link deleted event received",
		zap.Strings("ids", event.IDs),
		zap.String("owner", event.Owner),
		zap.Time("deletedAt", event.DeletedAt),
	)

	return nil
}

func (l *Logging) with(ctx context.Context) *zap.Logger {
	if id := messaging.CorrelationIDFromContext(ctx); id != "" {
		return l.logger.With(zap.String("correlation_id", id))
	}

	return l.logger
}
