package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kindredhq/intake/pkg/core"
	"github.com/kindredhq/intake/pkg/profile"
	"github.com/kindredhq/intake/pkg/state"
	"github.com/kindredhq/intake/pkg/wizard"
)

// Snapshots is the snapshot manager type the persister writes to.
type Snapshots = state.SnapshotManager[wizard.Snapshot[profile.Record]]

// SnapshotPersister saves the wizard of every intake session so a browser
// that reconnects, or a session that expired, resumes where it left off.
type SnapshotPersister struct {
	snapshots *Snapshots

	mu    sync.Mutex
	saved map[string]savedMark
}

// savedMark identifies the render a snapshot was taken at. Versions restart
// with every component, so the instance is part of the mark.
type savedMark struct {
	comp    *Component
	version uint64
}

// NewSnapshotPersister creates a persister over store.
func NewSnapshotPersister(store state.Store, opts ...state.SnapshotOption) *SnapshotPersister {
	return &SnapshotPersister{
		snapshots: state.NewSnapshotManager[wizard.Snapshot[profile.Record]](store, opts...),
		saved:     make(map[string]savedMark),
	}
}

// Snapshots returns the underlying snapshot manager.
func (p *SnapshotPersister) Snapshots() *Snapshots {
	return p.snapshots
}

// Persist saves the wizard state of c unless nothing visible changed since
// the last save.
func (p *SnapshotPersister) Persist(ctx context.Context, sessionID string, c core.Component) error {
	comp, ok := c.(*Component)
	if !ok {
		return fmt.Errorf("intake: cannot persist %T", c)
	}
	mark := savedMark{comp: comp, version: comp.Assigns().Tracker().Version()}

	p.mu.Lock()
	last, seen := p.saved[sessionID]
	p.mu.Unlock()
	if seen && last == mark {
		return nil
	}

	if _, err := p.snapshots.Save(ctx, sessionID, comp.Name(), comp.Snapshot()); err != nil {
		return err
	}
	p.mu.Lock()
	p.saved[sessionID] = mark
	p.mu.Unlock()
	return nil
}

// Resume restores a saved wizard into c. It reports false when the session
// has no usable snapshot.
func (p *SnapshotPersister) Resume(ctx context.Context, sessionID string, c core.Component) (bool, error) {
	comp, ok := c.(*Component)
	if !ok {
		return false, fmt.Errorf("intake: cannot resume %T", c)
	}
	p.Release(sessionID)
	env, err := p.snapshots.Load(ctx, sessionID)
	if errors.Is(err, state.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	comp.Restore(env.Data)
	return true, nil
}

// Release drops what the persister remembers about the live component of
// sessionID. The snapshot itself is kept for a later resume.
func (p *SnapshotPersister) Release(sessionID string) {
	p.mu.Lock()
	delete(p.saved, sessionID)
	p.mu.Unlock()
}

// Forget deletes the snapshot of sessionID.
func (p *SnapshotPersister) Forget(ctx context.Context, sessionID string) error {
	p.Release(sessionID)

	err := p.snapshots.Delete(ctx, sessionID)
	if errors.Is(err, state.ErrKeyNotFound) {
		return nil
	}
	return err
}
