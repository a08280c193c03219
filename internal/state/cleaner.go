package state

import (
	"context"
	"log/slog"
	"time"
)

// InspectableStorage is a Storage that can also enumerate its records.
type InspectableStorage interface {
	Storage
	Inspector
}

// Cleaner removes conversations that stayed idle longer than a TTL.
type Cleaner struct {
	storage  InspectableStorage
	locker   Locker
	log      *slog.Logger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewCleaner constructs a Cleaner. A nil locker clears without serialization.
func NewCleaner(storage InspectableStorage, locker Locker, log *slog.Logger, ttl, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		storage:  storage,
		locker:   locker,
		log:      log,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil || c.ttl <= 0 || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("state cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			c.Cleanup(ctx)
		}
	}
}

// Cleanup performs a single pass and returns the number of cleared conversations.
func (c *Cleaner) Cleanup(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	records, err := c.storage.List(ctx)
	if err != nil {
		c.log.Error("state cleaner list failed", slog.Any("error", err))
		return 0
	}

	cleared := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		if c.now().Sub(rec.UpdatedAt) <= c.ttl {
			continue
		}
		if c.clearIdle(ctx, rec.ConversationID) {
			cleared++
		}
	}

	return cleared
}

// clearIdle re-checks the record under the conversation lock so a concurrent update is never lost.
func (c *Cleaner) clearIdle(ctx context.Context, id ConversationID) bool {
	if c.locker != nil {
		unlock, err := c.locker.Lock(ctx, id)
		if err != nil {
			c.log.Warn("state cleaner could not lock conversation", slog.String("conversation_id", id.String()), slog.Any("error", err))
			return false
		}
		defer unlock()
	}

	rec, ok, err := c.storage.Lookup(ctx, id)
	if err != nil {
		c.log.Error("state cleaner failed to load state", slog.String("conversation_id", id.String()), slog.Any("error", err))
		return false
	}
	if !ok || c.now().Sub(rec.UpdatedAt) <= c.ttl {
		return false
	}

	if err := c.storage.Clear(ctx, id); err != nil {
		c.log.Error("state cleaner failed to clear state", slog.String("conversation_id", id.String()), slog.Any("error", err))
		return false
	}

	c.log.Info("state session cleared", slog.String("conversation_id", id.String()))
	return true
}
