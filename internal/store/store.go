package store

import "context"

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, snap *Snapshot) (*Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	LatestSnapshot(ctx context.Context, project string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*Snapshot, error)
	PruneSnapshots(ctx context.Context, project string, keep int) (int64, error)

	// Compile log
	RecordCompile(ctx context.Context, rec *CompileRecord) error
	ListCompiles(ctx context.Context, filter CompileFilter) ([]*CompileRecord, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
