package ratelimit

import (
	"context"
	"time"
)

// Store counts events per key in a sliding window.
type Store interface {
	// Record adds one event for key and returns the number of events in the
	// trailing window, including this one.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}
