// Package ratelimit is the request budget gate in front of the API.
// Call sites depend only on Limiter, so the in-process store can be swapped
// for the Redis one without touching them.
package ratelimit

import (
	"context"
	"time"
)

// Minimum budget values; smaller inputs are raised to these.
const (
	minLimit  = 1
	minWindow = time.Second
)

// Result is the outcome of one Check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts requests per key in fixed windows.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

func normalize(limit int, window time.Duration) (int, time.Duration) {
	if limit < minLimit {
		limit = minLimit
	}
	if window < minWindow {
		window = minWindow
	}
	return limit, window
}
