// Package ratelimit counts requests in sliding windows.
package ratelimit

import (
	"context"
	"time"
)

// Limiter admits or refuses one event for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, err error)
}

// SlidingWindowLimiter allows at most limit events per key in any window.
// Keys are namespaced with prefix so several limiters can share a store.
type SlidingWindowLimiter struct {
	store  Store
	prefix string
	limit  int64
	window time.Duration
}

func NewSlidingWindowLimiter(store Store, prefix string, limit int64, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		store:  store,
		prefix: prefix,
		limit:  limit,
		window: window,
	}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.store.Record(ctx, l.prefix+":"+key, l.window)
	if err != nil {
		return false, err
	}

	return count <= l.limit, nil
}
