// Package shutdown runs ordered cleanup hooks when the server is asked to stop.
package shutdown

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/gabrielmiguelok/applyform/pkg/logging"
)

// Common shutdown errors.
var (
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrAlreadyClosed   = errors.New("shutdown handler already closed")
)

// Hook priorities. Lower runs earlier.
const (
	PriorityFirst    = 0
	PriorityHTTP     = 100
	PrioritySessions = 200
	PriorityLast     = 1000
)

// Hook is one cleanup step.
type Hook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// Handler collects hooks and runs them once.
type Handler struct {
	timeout time.Duration
	logger  logging.Logger
	hooks   []Hook
	done    chan struct{}
	closed  bool
	mu      sync.Mutex
}

// NewHandler creates a handler whose hooks share a budget of timeout.
func NewHandler(timeout time.Duration, logger logging.Logger) *Handler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Handler{
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Register adds a hook.
func (h *Handler) Register(name string, priority int, fn func(ctx context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, Hook{Name: name, Priority: priority, Fn: fn})
}

// Wait blocks until ctx is done, typically on a signal from
// signal.NotifyContext, then shuts down. It returns nil without running
// the hooks when Shutdown was already called.
func (h *Handler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-h.done:
		return nil
	}
	return h.Shutdown()
}

// Shutdown runs every hook in priority order, hooks of equal priority in
// registration order. A failing hook does not stop the others; running out
// of time does.
func (h *Handler) Shutdown() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrAlreadyClosed
	}
	h.closed = true
	close(h.done)
	hooks := slices.Clone(h.hooks)
	h.mu.Unlock()

	slices.SortStableFunc(hooks, func(a, b Hook) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	h.logger.Info("shutting down", logging.Int("hooks", len(hooks)), logging.Duration("timeout", h.timeout))
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var errs []error
	for _, hook := range hooks {
		start := time.Now()
		err := hook.Fn(ctx)
		fields := []logging.Field{logging.String("hook", hook.Name), logging.Duration("took", time.Since(start))}
		if err != nil {
			h.logger.Error("shutdown hook failed", append(fields, logging.Err(err))...)
			errs = append(errs, err)
		} else {
			h.logger.Debug("shutdown hook done", fields...)
		}

		if ctx.Err() != nil {
			return errors.Join(append(errs, ErrShutdownTimeout)...)
		}
	}
	return errors.Join(errs...)
}

// Done is closed once shutdown has started.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

// IsClosed reports whether Shutdown has been called.
func (h *Handler) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
