package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Shutdown coordinates graceful shutdown hooks. Phases run in order,
// hooks of the same phase run in parallel.
type Shutdown struct {
	mu       sync.Mutex
	hooks    []Hook
	log      *slog.Logger
	started  chan struct{}
	startOne sync.Once
}

func NewShutdown(log *slog.Logger) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log, started: make(chan struct{})}
}

// Register adds a named shutdown hook to phase.
func (s *Shutdown) Register(phase Phase, name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Phase: phase, Fn: fn})
}

// Started is closed once Execute begins.
func (s *Shutdown) Started() <-chan struct{} {
	return s.started
}

// Execute runs all registered hooks and returns the joined hook errors.
// A phase whose hooks outlive ctx is abandoned and later phases still run.
func (s *Shutdown) Execute(ctx context.Context) error {
	s.startOne.Do(func() { close(s.started) })

	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].Phase < hooks[j].Phase })

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for len(hooks) > 0 {
		phase := hooks[0].Phase
		end := 1
		for end < len(hooks) && hooks[end].Phase == phase {
			end++
		}

		errs = append(errs, s.runPhase(ctx, phase, hooks[:end])...)
		hooks = hooks[end:]
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}

func (s *Shutdown) runPhase(ctx context.Context, phase Phase, hooks []Hook) []error {
	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)

	for _, h := range hooks {
		wg.Add(1)
		go func(h Hook) {
			defer wg.Done()

			s.log.Info("running shutdown hook", slog.String("phase", phase.String()), slog.String("hook", h.Name))

			if err := h.Fn(ctx); err != nil {
				s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
				errMu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				errMu.Unlock()
				return
			}

			s.log.Info("shutdown hook completed", slog.String("hook", h.Name))
		}(h)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("shutdown phase abandoned", slog.String("phase", phase.String()), slog.Any("error", ctx.Err()))
		errMu.Lock()
		errs = append(errs, fmt.Errorf("phase %s: %w", phase, ctx.Err()))
		errMu.Unlock()
	}

	errMu.Lock()
	defer errMu.Unlock()
	return append([]error(nil), errs...)
}
