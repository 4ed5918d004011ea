package state

import (
	"context"
	"errors"
	"time"
)

// DefaultSnapshotTTL is how long an idle session snapshot is kept.
const DefaultSnapshotTTL = 24 * time.Hour

// Envelope wraps a session snapshot with bookkeeping.
type Envelope[T any] struct {
	SessionID string    `msgpack:"sid"`
	Component string    `msgpack:"cn"`
	Version   uint64    `msgpack:"v"`
	UpdatedAt time.Time `msgpack:"ua"`
	ExpiresAt time.Time `msgpack:"ea"`
	Data      T         `msgpack:"d"`
}

// Expired reports whether the envelope outlived its TTL at now.
func (e *Envelope[T]) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// SnapshotManager saves and loads one snapshot of type T per session.
type SnapshotManager[T any] struct {
	store      Store
	serializer *MsgPackSerializer
	keyPrefix  string
	ttl        time.Duration
	now        func() time.Time
}

// SnapshotOption configures the snapshot manager.
type SnapshotOption func(*snapshotConfig)

type snapshotConfig struct {
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) SnapshotOption {
	return func(c *snapshotConfig) {
		c.keyPrefix = prefix
	}
}

// WithTTL sets how long snapshots live after their last save.
func WithTTL(ttl time.Duration) SnapshotOption {
	return func(c *snapshotConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) SnapshotOption {
	return func(c *snapshotConfig) {
		c.now = now
	}
}

// NewSnapshotManager creates a new snapshot manager.
func NewSnapshotManager[T any](store Store, opts ...SnapshotOption) *SnapshotManager[T] {
	cfg := snapshotConfig{
		keyPrefix: "intake:session:",
		ttl:       DefaultSnapshotTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &SnapshotManager[T]{
		store:      store,
		serializer: NewMsgPackSerializer(),
		keyPrefix:  cfg.keyPrefix,
		ttl:        cfg.ttl,
		now:        cfg.now,
	}
}

// Save stores data for sessionID, bumping the version of any previous
// snapshot.
func (sm *SnapshotManager[T]) Save(ctx context.Context, sessionID, component string, data T) (uint64, error) {
	version := uint64(1)
	if prev, err := sm.Load(ctx, sessionID); err == nil {
		version = prev.Version + 1
	} else if !errors.Is(err, ErrKeyNotFound) && !errors.Is(err, ErrInvalidData) {
		return 0, err
	}

	now := sm.now()
	env := Envelope[T]{
		SessionID: sessionID,
		Component: component,
		Version:   version,
		UpdatedAt: now,
		ExpiresAt: now.Add(sm.ttl),
		Data:      data,
	}
	raw, err := sm.serializer.Marshal(env)
	if err != nil {
		return 0, err
	}
	if err := sm.store.Set(ctx, sm.keyPrefix+sessionID, raw, sm.ttl); err != nil {
		return 0, err
	}
	return version, nil
}

// Load retrieves the snapshot of sessionID. Expired snapshots are deleted
// and reported as ErrKeyNotFound.
func (sm *SnapshotManager[T]) Load(ctx context.Context, sessionID string) (*Envelope[T], error) {
	raw, err := sm.store.Get(ctx, sm.keyPrefix+sessionID)
	if err != nil {
		return nil, err
	}

	var env Envelope[T]
	if err := sm.serializer.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.Expired(sm.now()) {
		_ = sm.Delete(ctx, sessionID)
		return nil, ErrKeyNotFound
	}
	return &env, nil
}

// Delete removes the snapshot of sessionID.
func (sm *SnapshotManager[T]) Delete(ctx context.Context, sessionID string) error {
	return sm.store.Delete(ctx, sm.keyPrefix+sessionID)
}

// Sessions returns the IDs of all stored snapshots.
func (sm *SnapshotManager[T]) Sessions(ctx context.Context) ([]string, error) {
	keys, err := sm.store.Keys(ctx, sm.keyPrefix+"*")
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, key := range keys {
		ids[i] = key[len(sm.keyPrefix):]
	}
	return ids, nil
}
