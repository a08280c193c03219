package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/idempotency"
	"github.com/Proton-105/pairpicker-bot/pkg/metrics"
)

const idempotencyTimeout = 2 * time.Second

// Idempotency drops Telegram updates that were already processed, e.g. after a
// webhook redelivery or a polling offset that was not committed before a restart.
func Idempotency(manager idempotency.Manager, ttl time.Duration, log *slog.Logger) telebot.MiddlewareFunc {
	if manager == nil {
		return func(next telebot.HandlerFunc) telebot.HandlerFunc {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			key := extractIdempotencyKey(c)
			if key == "" {
				return next(c)
			}

			claimCtx, cancel := context.WithTimeout(context.Background(), idempotencyTimeout)
			defer cancel()

			result, err := manager.Execute(claimCtx, key, ttl, func(context.Context) error {
				return next(c)
			})
			switch {
			case errors.Is(err, idempotency.ErrRequestInProgress):
				metrics.RecordDroppedUpdate("in_progress")
				return nil
			case errors.Is(err, idempotency.ErrStoreUnavailable):
				// fn has not run yet
				log.Warn("idempotency check skipped", slog.String("key", key), slog.Any("error", err))
				return next(c)
			case err != nil:
				return err
			case result.Duplicate:
				metrics.RecordDroppedUpdate("duplicate")
				log.Debug("duplicate update skipped", slog.String("key", key))
			}

			return nil
		}
	}
}

func extractIdempotencyKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	if upd := c.Update(); upd.ID != 0 {
		return idempotency.UpdateKey(upd.ID)
	}

	if cb := c.Callback(); cb != nil && cb.ID != "" {
		return idempotency.CallbackKey(cb.ID)
	}

	return ""
}
