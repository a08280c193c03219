package errors

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/pairpicker-bot/pkg/logger"
	"github.com/Proton-105/pairpicker-bot/pkg/metrics"
)

const (
	defaultUserMessage = "Something went wrong. Please try again later."
	codeUnknown        = "unknown"
)

// Handler is the single place where update-level failures are logged, counted and reported.
type Handler struct {
	log           *slog.Logger
	sentryEnabled bool
}

func NewHandler(log *slog.Logger, sentryEnabled bool) *Handler {
	if log == nil {
		log = slog.Default()
	}

	return &Handler{
		log:           log,
		sentryEnabled: sentryEnabled,
	}
}

// Handle logs err, reports severe errors to Sentry and returns the text to show the user.
// An empty message means the user should not be notified.
func (h *Handler) Handle(ctx context.Context, err error) (string, bool) {
	if err == nil {
		return "", false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	appErr, known := classify(err)

	attrs := []slog.Attr{
		slog.String("code", appErr.Code),
		slog.String("message", err.Error()),
		slog.String("severity", string(appErr.Severity)),
		slog.Bool("retryable", appErr.Retryable),
	}
	if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
		attrs = append(attrs, slog.String("correlation_id", correlationID))
	}

	msg := "application error"
	if !known {
		msg = "unknown error"
	}
	h.log.LogAttrs(ctx, levelFor(appErr.Severity), msg, attrs...)
	metrics.RecordError(appErr.Code, string(appErr.Severity))

	if h.sentryEnabled && (appErr.Severity == SeverityCritical || appErr.Severity == SeverityHigh) {
		h.sendToSentry(err, appErr)
	}

	// the user never learns about a reply that could not reach them
	if appErr.Code == CodeSend {
		return "", appErr.Retryable
	}
	if appErr.UserMessage != "" {
		return appErr.UserMessage, appErr.Retryable
	}

	return defaultUserMessage, appErr.Retryable
}

// classify returns the AppError carried by err, or a high severity stand-in for foreign errors.
func classify(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}

	return &AppError{Code: codeUnknown, Severity: SeverityHigh}, false
}

func levelFor(severity Severity) slog.Level {
	if severity == SeverityLow {
		return slog.LevelWarn
	}
	return slog.LevelError
}

func (h *Handler) sendToSentry(err error, appErr *AppError) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("code", appErr.Code)
		if appErr.Severity != "" {
			scope.SetTag("severity", string(appErr.Severity))
		}

		sentry.CaptureException(err)
	})
}
