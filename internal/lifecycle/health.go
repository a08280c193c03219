package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Proton-105/pairpicker-bot/internal/health"
)

var (
	ErrShuttingDown = errors.New("shutting down")
	errUnhealthy    = errors.New("dependencies unhealthy")
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes reports liveness for as long as the process runs and readiness
// while dependencies are healthy and shutdown has not begun.
type Probes struct {
	log      *slog.Logger
	checker  *health.Checker
	shutdown *Shutdown
}

var _ HealthChecker = (*Probes)(nil)

// NewProbes creates probes. A nil checker makes readiness depend on shutdown only.
func NewProbes(log *slog.Logger, checker *health.Checker, shutdown *Shutdown) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, checker: checker, shutdown: shutdown}
}

func (p *Probes) Liveness(ctx context.Context) error {
	return nil
}

func (p *Probes) Readiness(ctx context.Context) error {
	if p.shutdown != nil {
		select {
		case <-p.shutdown.Started():
			return ErrShuttingDown
		default:
		}
	}

	if p.checker != nil && !health.Healthy(p.checker.Check(ctx)) {
		return errUnhealthy
	}

	return nil
}

// Handler serves probe as a plain text endpoint.
func Handler(probe func(context.Context) error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := probe(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(err.Error()))
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
}
