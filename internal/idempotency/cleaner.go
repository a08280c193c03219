package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is a store whose expired entries have to be removed explicitly.
type Sweeper interface {
	Sweep() int
}

// Cleaner periodically sweeps an in-memory store. Redis entries expire on their own.
type Cleaner struct {
	store    Sweeper
	log      *slog.Logger
	interval time.Duration
}

func NewCleaner(store Sweeper, log *slog.Logger, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}

	return &Cleaner{
		store:    store,
		log:      log,
		interval: interval,
	}
}

func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.store == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := c.store.Sweep(); removed > 0 {
				c.log.Debug("idempotency entries swept", slog.Int("removed", removed))
			}
		}
	}
}
