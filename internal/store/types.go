package store

import (
	"encoding/json"
	"time"
)

// Snapshot is a stored graph document. Revisions count up per project.
type Snapshot struct {
	ID        string          `json:"id"`
	Project   string          `json:"project"`
	Revision  int64           `json:"revision"`
	Hash      string          `json:"hash"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
}

// CompileMode is the kind of compile recorded.
type CompileMode string

const (
	CompileOnline  CompileMode = "online"
	CompileProject CompileMode = "project"
)

// CompileStatus is the outcome of a recorded compile.
type CompileStatus string

const (
	CompileSucceeded CompileStatus = "succeeded"
	CompileFailed    CompileStatus = "failed"
)

// CompileRecord is one row of the compile log.
type CompileRecord struct {
	ID         string        `json:"id"`
	Project    string        `json:"project"`
	Mode       CompileMode   `json:"mode"`
	DocHash    string        `json:"doc_hash"`
	SnapshotID string        `json:"snapshot_id,omitempty"`
	Status     CompileStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	NodeCount  int           `json:"node_count"`
	FileCount  int           `json:"file_count"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// SnapshotFilter selects snapshots.
type SnapshotFilter struct {
	Project string
	Limit   int
}

// CompileFilter selects compile records.
type CompileFilter struct {
	Project string
	Mode    CompileMode
	Status  CompileStatus
	Since   *time.Time
	Limit   int
}
