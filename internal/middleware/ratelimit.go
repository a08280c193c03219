package middleware

import (
	"context"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/pairpicker-bot/internal/errors"
	"github.com/Proton-105/pairpicker-bot/internal/ratelimit"
	"github.com/Proton-105/pairpicker-bot/pkg/metrics"
)

const rateLimitTimeout = 2 * time.Second

// RateLimitMiddleware enforces per-conversation rate limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter    ratelimit.Limiter
	rules      *ratelimit.Rules
	errHandler *apperrors.Handler
	log        *slog.Logger
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, errHandler *apperrors.Handler, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter:    limiter,
		rules:      rules,
		errHandler: errHandler,
		log:        log,
	}
}

// Handle drops updates over the limit and tells the user when to come back.
// A failing limiter lets the update through.
func (m *RateLimitMiddleware) Handle(next telebot.HandlerFunc) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		if m.limiter == nil || m.rules == nil {
			return next(c)
		}

		id, ok := handlers.ConversationID(c)
		if !ok || m.rules.IsWhitelisted(int64(id)) {
			return next(c)
		}

		ctx, cancel := context.WithTimeout(context.Background(), rateLimitTimeout)
		defer cancel()

		result, err := m.limiter.Allow(ctx, id.String(), m.rules.PerConversation())
		if err != nil {
			m.log.Warn("rate limiter error", slog.String("conversation_id", id.String()), slog.Any("error", err))
			return next(c)
		}
		if result.Allowed {
			return next(c)
		}

		metrics.RecordDroppedUpdate("rate_limited")

		rateErr := apperrors.NewRateLimitError(result.RetryAfter)
		userMsg := rateErr.UserMessage
		if m.errHandler != nil {
			userMsg, _ = m.errHandler.Handle(ctx, rateErr)
		}

		if c.Callback() != nil {
			return c.Respond(&telebot.CallbackResponse{Text: userMsg})
		}
		return c.Send(userMsg)
	}
}
