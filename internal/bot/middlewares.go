package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/pairpicker-bot/internal/errors"
	"github.com/Proton-105/pairpicker-bot/pkg/logger"
)

const fallbackUserMessage = "⚠️ Something went wrong. Please try again later."

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperrors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := fallbackUserMessage
					if errHandler != nil {
						appErr := &apperrors.AppError{
							Code:     "E999",
							Message:  fmt.Sprintf("panic recovered: %v", r),
							Severity: apperrors.SeverityCritical,
						}
						if msg, _ := errHandler.Handle(handlers.RequestContext(c), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := c.Send(userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// RequestContextMiddleware gives every update its own deadline and correlation id.
// The context is detached from process shutdown so a started transition can finish.
func RequestContextMiddleware(timeout time.Duration) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			ctx := logger.WithCorrelationID(context.Background(), uuid.NewString())

			cancel := context.CancelFunc(func() {})
			if timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, timeout)
			}
			defer cancel()

			handlers.WithRequestContext(c, ctx)
			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging for handler failures.
// Delivery failures are only reported: the user could not receive a notice anyway.
func ErrorHandlingMiddleware(errHandler *apperrors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := fallbackUserMessage
			if errors.Is(err, apperrors.ErrSendFailure) {
				userMsg = ""
			}
			if errHandler != nil {
				userMsg, _ = errHandler.Handle(handlers.RequestContext(c), err)
			}

			if c != nil && userMsg != "" {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()
			chatID := int64(0)
			if conv, ok := handlers.ConversationID(c); ok {
				chatID = int64(conv)
			}

			action := ""
			if cb := c.Callback(); cb != nil {
				action = cb.Data
			} else {
				action = c.Text()
			}

			attrs := []any{
				slog.Int64("chat_id", chatID),
				slog.String("action", action),
			}
			if correlationID := logger.CorrelationIDFromContext(handlers.RequestContext(c)); correlationID != "" {
				attrs = append(attrs, slog.String("correlation_id", correlationID))
			}

			log.Debug("handling update", attrs...)
			err := next(c)
			log.Info("handled update", append(attrs,
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)...)

			return err
		}
	}
}
