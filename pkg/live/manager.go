package live

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kindredhq/intake/pkg/core"
	"github.com/kindredhq/intake/pkg/logging"
)

// ManagerConfig configures the session manager.
type ManagerConfig struct {
	// MaxSessions caps live sessions; the least recently active one is
	// evicted to make room. Zero means no limit.
	MaxSessions int

	// SessionTTL is how long a session may stay idle before it is closed.
	// Its snapshot outlives it, so the same ID can resume later.
	SessionTTL time.Duration

	// SweepInterval is how often idle sessions are looked for.
	SweepInterval time.Duration

	InboxSize  int
	OutboxSize int
}

// DefaultManagerConfig returns the default configuration.
func DefaultManagerConfig() *ManagerConfig {
	return &ManagerConfig{
		MaxSessions:   10000,
		SessionTTL:    30 * time.Minute,
		SweepInterval: time.Minute,
		InboxSize:     64,
		OutboxSize:    64,
	}
}

// Manager creates, looks up and expires sessions. Every session hosts a
// fresh component from the factory.
type Manager struct {
	config    *ManagerConfig
	factory   func() core.Component
	persister Persister
	logger    logging.Logger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

// ManagerOption configures a manager.
type ManagerOption func(*Manager)

// WithPersister saves and resumes component state through p.
func WithPersister(p Persister) ManagerOption {
	return func(m *Manager) {
		m.persister = p
	}
}

// WithManagerLogger sets the logger handed to sessions.
func WithManagerLogger(logger logging.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithManagerClock overrides the clock used for idle expiry.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a session manager.
func NewManager(factory func() core.Component, config *ManagerConfig, opts ...ManagerOption) *Manager {
	if config == nil {
		config = DefaultManagerConfig()
	}
	m := &Manager{
		config:   config,
		factory:  factory,
		logger:   logging.NopLogger{},
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open returns the live session with the given ID, or starts one. A
// well-formed but unknown ID is reused so a saved snapshot can resume; any
// other ID is replaced by a fresh one.
func (m *Manager) Open(ctx context.Context, id string, params core.Params, session core.Session) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	} else if s, ok := m.Get(id); ok {
		return s, nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	var evicted *Session
	if m.config.MaxSessions > 0 && len(m.sessions) >= m.config.MaxSessions {
		evicted = m.oldestLocked()
		if evicted != nil {
			delete(m.sessions, evicted.id)
		}
	}
	s := newSession(id, m.factory(), m.config, m.persister, m.logger)
	m.sessions[id] = s
	m.mu.Unlock()

	if evicted != nil {
		m.logger.Info("evicting session", logging.String("session", evicted.id))
		evicted.Close(core.TerminateTimeout)
	}

	if err := s.start(ctx, params, session); err != nil {
		m.mu.Lock()
		delete(m.sessions, id)
		m.mu.Unlock()
		_ = s.component.Terminate(ctx, core.TerminateError)
		return nil, err
	}
	m.logger.Debug("session opened", logging.String("session", id))
	return s, nil
}

// Get returns a live session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove closes a session and forgets its snapshot.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close(core.TerminateNormal)
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the live session IDs, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// it closed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.config.SessionTTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close(core.TerminateTimeout)
	}
	if len(idle) > 0 {
		m.logger.Info("expired idle sessions", logging.Int("count", len(idle)))
	}
	return len(idle)
}

// Run sweeps idle sessions until ctx is done, then shuts every session
// down.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			m.Shutdown()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		}
	}
}

// Shutdown closes all sessions and refuses new ones. Snapshots are kept.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close(core.TerminateShutdown)
	}
}

func (m *Manager) oldestLocked() *Session {
	var oldest *Session
	for _, s := range m.sessions {
		if oldest == nil || s.LastActivity().Before(oldest.LastActivity()) {
			oldest = s
		}
	}
	return oldest
}
