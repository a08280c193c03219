// Package ratelimit throttles updates per conversation with a sliding window.
package ratelimit

import (
	"context"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	// RetryAfter is how long until the oldest counted request leaves the window.
	RetryAfter time.Duration
}

// Limiter describes a rate-limiting strategy.
// A rejected request is reported through Result; errors mean the backend failed.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (Result, error)
}
