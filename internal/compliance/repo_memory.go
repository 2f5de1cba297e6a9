package compliance

import (
	"context"
	"sync"
)

// MemoryLoader serves snapshots from memory. Useful for tests.
// It is not intended for production use.
type MemoryLoader struct {
	mu    sync.Mutex
	snaps map[string]Snapshot
}

func NewMemoryLoader() *MemoryLoader {
	return &MemoryLoader{snaps: map[string]Snapshot{}}
}

func (l *MemoryLoader) Put(snap Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps[snap.OrgID] = snap
}

func (l *MemoryLoader) LoadSnapshot(ctx context.Context, orgID string) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap, ok := l.snaps[orgID]
	if !ok {
		return Snapshot{}, ErrOrgNotFound
	}
	return snap, nil
}
