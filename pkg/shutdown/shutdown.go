// Package shutdown runs ordered teardown hooks when the server stops.
package shutdown

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/kindredhq/intake/pkg/logging"
)

// Common shutdown errors.
var (
	ErrShutdownTimeout = errors.New("shutdown timed out")
	ErrAlreadyClosed   = errors.New("shutdown handler already closed")
)

// Hook priorities; lower runs earlier.
const (
	PriorityHTTP     = 100
	PrioritySessions = 200
	PriorityStore    = 300
	PriorityCache    = 400
)

// Hook is one teardown step.
type Hook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// Config configures the shutdown handler.
type Config struct {
	// Timeout bounds all hooks together.
	Timeout time.Duration
}

// DefaultConfig returns a 30 second budget.
func DefaultConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}

// Handler collects hooks and runs them once.
type Handler struct {
	config *Config
	logger logging.Logger

	mu     sync.Mutex
	hooks  []Hook
	closed bool
}

// NewHandler creates a handler. A nil logger discards hook reports.
func NewHandler(config *Config, logger logging.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	return &Handler{config: config, logger: logger}
}

// Register adds a hook.
func (h *Handler) Register(hook Hook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// RegisterFunc registers fn as a hook.
func (h *Handler) RegisterFunc(name string, priority int, fn func(ctx context.Context) error) {
	h.Register(Hook{Name: name, Priority: priority, Fn: fn})
}

// RegisterCloser registers c.Close as a hook.
func (h *Handler) RegisterCloser(name string, priority int, c io.Closer) {
	h.RegisterFunc(name, priority, func(context.Context) error {
		return c.Close()
	})
}

// Shutdown runs every hook in priority order, hooks of equal priority in
// registration order. A hook error does not stop the remaining hooks; the
// timeout does.
func (h *Handler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrAlreadyClosed
	}
	h.closed = true
	hooks := append([]Hook(nil), h.hooks...)
	h.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].Priority < hooks[j].Priority
	})

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	var errs []error
	for _, hook := range hooks {
		start := time.Now()
		err := hook.Fn(ctx)
		fields := []logging.Field{
			logging.String("hook", hook.Name),
			logging.Duration("took", time.Since(start)),
		}
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
