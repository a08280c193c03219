package bot

import (
	"context"
	"log/slog"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/pairpicker-bot/internal/bot/handlers"
)

// Router runs updates through the middleware chain and tracks in-flight handlers.
type Router struct {
	mu          sync.RWMutex
	handler     handlers.Handler
	middlewares []handlers.Middleware
	log         *slog.Logger
	inflight    sync.WaitGroup
}

// NewRouter builds a Router that ends every chain in h.
func NewRouter(h handlers.Handler, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		handler:     h,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// Route directs the incoming update through the chain.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	r.inflight.Add(1)
	defer r.inflight.Done()

	wrapped := r.applyMiddlewares(r.handler)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

// Drain waits for routed updates to finish or for ctx to end.
// Call it after the poller stopped so no new updates arrive.
func (r *Router) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.log.Warn("in-flight updates did not finish before deadline")
		return ctx.Err()
	}
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
