package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/kindredhq/intake/pkg/profile"
)

// MemoryStore keeps submissions in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]Submission
	opts   Opts
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]Submission),
		opts:  applyOpts(opts),
	}
}

func (s *MemoryStore) Save(ctx context.Context, sessionID string, rec profile.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", ErrClosed
	}
	id := uuid.NewString()
	s.items[id] = Submission{
		ID:        id,
		SessionID: sessionID,
		Record:    rec.Clone(),
		CreatedAt: s.opts.Now(),
	}
	return id, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	sub, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	sub.Record = sub.Record.Clone()
	return &sub, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]Submission, 0, len(s.items))
	for _, sub := range s.items {
		sub.Record = sub.Record.Clone()
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
