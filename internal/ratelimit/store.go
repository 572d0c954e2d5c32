package ratelimit

import (
	"context"
	"time"
)

// Store keeps per-key request timestamps for sliding windows.
type Store interface {
	// Record adds a request for key and returns how many requests fall inside window,
	// including this one. Entries older than window are pruned.
	Record(ctx context.Context, key string, window time.Duration) (count int64, err error)
}
