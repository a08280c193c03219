// Package idempotency makes sure a redelivered Telegram update is applied only once.
package idempotency

import (
	"context"
	"time"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
)

type Record struct {
	Status      string
	CompletedAt time.Time
}

// Store persists claims and completion records.
type Store interface {
	// Lock claims key for lockTTL and reports whether the claim succeeded.
	Lock(ctx context.Context, key string, lockTTL time.Duration) (bool, error)
	// Get returns nil when nothing is recorded for key.
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, key string, record *Record, ttl time.Duration) error
	ReleaseLock(ctx context.Context, key string) error
}
