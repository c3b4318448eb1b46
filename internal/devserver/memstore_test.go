package devserver

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rendis/flowcode/internal/store"
	"github.com/rendis/flowcode/pkg/schema"
)

// memStore is an in-memory store.Store for handler tests.
type memStore struct {
	mu        sync.Mutex
	snapshots []*store.Snapshot
	compiles  []*store.CompileRecord
	failSave  error
	vacuums   int
}

var _ store.Store = (*memStore)(nil)

func (m *memStore) SaveSnapshot(_ context.Context, snap *store.Snapshot) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return nil, m.failSave
	}
	out := *snap
	out.ID = uuid.NewString()
	out.Revision = int64(len(m.snapshots) + 1)
	m.snapshots = append(m.snapshots, &out)
	return &out, nil
}

func (m *memStore) GetSnapshot(_ context.Context, id string) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "snapshot %q not found", id)
}

func (m *memStore) LatestSnapshot(_ context.Context, project string) (*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].Project == project {
			return m.snapshots[i], nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "snapshot for project %q not found", project)
}

func (m *memStore) ListSnapshots(_ context.Context, _ store.SnapshotFilter) ([]*store.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.Snapshot(nil), m.snapshots...), nil
}

func (m *memStore) PruneSnapshots(_ context.Context, _ string, keep int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) <= keep {
		return 0, nil
	}
	n := len(m.snapshots) - keep
	m.snapshots = m.snapshots[n:]
	return int64(n), nil
}

func (m *memStore) RecordCompile(_ context.Context, rec *store.CompileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compiles = append(m.compiles, rec)
	return nil
}

func (m *memStore) ListCompiles(_ context.Context, _ store.CompileFilter) ([]*store.CompileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*store.CompileRecord(nil), m.compiles...), nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }

func (m *memStore) Vacuum(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vacuums++
	return nil
}

func (m *memStore) snapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}
