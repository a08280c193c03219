package middleware

import (
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/bot/handlers"
	"github.com/Proton-105/pairpicker-bot/pkg/metrics"
)

// Metrics measures execution time and status per dialogue event kind.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordEvent(eventKind(c), status, time.Since(start))

		return err
	}
}

func eventKind(c telebot.Context) string {
	ev, ok := handlers.EventFromContext(c)
	if !ok {
		return "unknown"
	}

	return ev.Kind.String()
}
