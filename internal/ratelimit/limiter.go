// Package ratelimit implements a fixed-window request limiter with a
// (key, window, max) contract. The Redis implementation shares counters
// across instances; Memory is only suitable for a single process.
package ratelimit

import (
	"context"
	"time"
)

type Decision struct {
	Allowed   bool
	Count     int
	Remaining int
	// RetryAfter is the time left in the current window.
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration, max int) (Decision, error)
}

func decide(count int, ttl time.Duration, max int) Decision {
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= max,
		Count:      count,
		Remaining:  remaining,
		RetryAfter: ttl,
	}
}
