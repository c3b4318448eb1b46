package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/flowcode/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/flowcode.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Snapshots ---

// SaveSnapshot stores snap as the project's next revision. When the latest
// revision already holds the same document, that revision is returned and
// nothing is written. ID, Hash and CreatedAt are filled when empty.
func (s *LibSQLStore) SaveSnapshot(ctx context.Context, snap *Snapshot) (*Snapshot, error) {
	if snap == nil || len(snap.Document) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "snapshot document is empty")
	}
	out := *snap
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.Hash == "" {
		out.Hash = documentHash(out.Document)
	}
	out.CreatedAt = timeOrNow(out.CreatedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	latest, err := scanSnapshot(tx.QueryRowContext(ctx,
		`SELECT id, project, revision, hash, document, created_at FROM snapshots
		 WHERE project = ? ORDER BY revision DESC LIMIT 1`, out.Project))
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, err
	case latest.Hash == out.Hash:
		return latest, nil
	default:
		out.Revision = latest.Revision
	}
	out.Revision++

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, project, revision, hash, document, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		out.ID, out.Project, out.Revision, out.Hash, string(out.Document), out.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return &out, nil
}

func (s *LibSQLStore) GetSnapshot(ctx context.Context, id string) (*Snapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT id, project, revision, hash, document, created_at FROM snapshots WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, storeNotFound("snapshot", id)
	}
	return snap, err
}

// LatestSnapshot returns the highest revision stored for project.
func (s *LibSQLStore) LatestSnapshot(ctx context.Context, project string) (*Snapshot, error) {
	snap, err := scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT id, project, revision, hash, document, created_at FROM snapshots
		 WHERE project = ? ORDER BY revision DESC LIMIT 1`, project))
	if err == sql.ErrNoRows {
		return nil, storeNotFound("snapshot for project", project)
	}
	return snap, err
}

// ListSnapshots returns snapshots newest first.
func (s *LibSQLStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*Snapshot, error) {
	query := `SELECT id, project, revision, hash, document, created_at FROM snapshots`
	var args []any
	if filter.Project != "" {
		query += ` WHERE project = ?`
		args = append(args, filter.Project)
	}
	query += ` ORDER BY project, revision DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps the newest keep revisions of project (of every project
// when project is empty) and deletes the rest.
func (s *LibSQLStore) PruneSnapshots(ctx context.Context, project string, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id IN (
		   SELECT id FROM (
		     SELECT id, ROW_NUMBER() OVER (PARTITION BY project ORDER BY revision DESC) AS rn
		     FROM snapshots WHERE (? = '' OR project = ?)
		   ) WHERE rn > ?
		 )`, project, project, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// --- Compile log ---

func (s *LibSQLStore) RecordCompile(ctx context.Context, rec *CompileRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = timeOrNow(rec.CreatedAt)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compiles (id, project, mode, doc_hash, snapshot_id, status, error, node_count, file_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Project, string(rec.Mode), rec.DocHash, nullStr(rec.SnapshotID), string(rec.Status),
		nullStr(rec.Error), rec.NodeCount, rec.FileCount, rec.Duration.Milliseconds(), rec.CreatedAt,
	)
	return err
}

// ListCompiles returns compile records newest first.
func (s *LibSQLStore) ListCompiles(ctx context.Context, filter CompileFilter) ([]*CompileRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Project != "" {
		where = append(where, "project = ?")
		args = append(args, filter.Project)
	}
	if filter.Mode != "" {
		where = append(where, "mode = ?")
		args = append(args, string(filter.Mode))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, project, mode, doc_hash, snapshot_id, status, error, node_count, file_count, duration_ms, created_at FROM compiles`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*CompileRecord
	for rows.Next() {
		rec := &CompileRecord{}
		var (
			mode, status      string
			snapshotID, errNS sql.NullString
			durationMs        int64
		)
		if err := rows.Scan(&rec.ID, &rec.Project, &mode, &rec.DocHash, &snapshotID, &status, &errNS,
			&rec.NodeCount, &rec.FileCount, &durationMs, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Mode = CompileMode(mode)
		rec.Status = CompileStatus(status)
		rec.SnapshotID = snapshotID.String
		rec.Error = errNS.String
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, rec)
	}
	return out, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	snap := &Snapshot{}
	var doc string
	if err := row.Scan(&snap.ID, &snap.Project, &snap.Revision, &snap.Hash, &doc, &snap.CreatedAt); err != nil {
		return nil, err
	}
	snap.Document = []byte(doc)
	return snap, nil
}

func documentHash(doc []byte) string {
	sum := sha256.Sum256(doc)
	return hex.EncodeToString(sum[:])
}

func storeNotFound(resource, id string) *schema.FlowError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*LibSQLStore)(nil)
