// Package store provides the durable local mirror for synced task records.
//
// The store is an embedded SQLite database (WAL mode for concurrent
// readers) holding two tables: tasks, keyed by the canonical remote id,
// and task_relation_links, the deduplicated many-to-many edge set. The
// sync engine is the only writer for the lifetime of a run; the GUI layer
// reads finished rows through its own connection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/taskmirror/taskmirror/internal/record"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DB wraps the SQLite connection with mirror-specific operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open creates a database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// The caller MUST call Close() when done.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	return db, nil
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the tables and indexes if they don't exist.
// Idempotent - safe to call on every startup.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		client_id TEXT PRIMARY KEY,
		remote_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		payload BLOB NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		local_modified_at TEXT NOT NULL,
		remote_modified_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS task_relation_links (
		task_id TEXT NOT NULL,
		related_id TEXT NOT NULL,
		PRIMARY KEY (task_id, related_id)
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_sync_status ON tasks(sync_status);
	CREATE INDEX IF NOT EXISTS idx_tasks_remote_modified ON tasks(remote_modified_at);
	CREATE INDEX IF NOT EXISTS idx_links_related ON task_relation_links(related_id);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// Clear empties both tables in one transaction. Called at the start of a
// fresh (non-resumed) run so a full resync never leaves orphaned rows; a
// resumed run skips it entirely.
func (db *DB) Clear(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin clear transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM task_relation_links"); err != nil {
		return fmt.Errorf("failed to clear relation links: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tasks"); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	return nil
}

// TaskCount returns the number of mirrored task rows.
func (db *DB) TaskCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM tasks").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return count, nil
}

// LinkCount returns the number of stored relation edges.
func (db *DB) LinkCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM task_relation_links").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count relation links: %w", err)
	}
	return count, nil
}

// GetTaskByRemoteID retrieves one mirrored task row.
// Returns sql.ErrNoRows when the task is not present.
func (db *DB) GetTaskByRemoteID(ctx context.Context, remoteID string) (*record.TaskRecord, error) {
	query := `
	SELECT client_id, remote_id, title, payload, sync_status,
	       local_modified_at, remote_modified_at
	FROM tasks
	WHERE remote_id = ?
	`

	var rec record.TaskRecord
	var localMod, remoteMod string

	err := db.conn.QueryRowContext(ctx, query, remoteID).Scan(
		&rec.ClientID,
		&rec.RemoteID,
		&rec.Title,
		&rec.Payload,
		&rec.SyncStatus,
		&localMod,
		&remoteMod,
	)
	if err != nil {
		return nil, err
	}

	if t, err := time.Parse(time.RFC3339, localMod); err == nil {
		rec.LocalModifiedAt = t
	}
	if t, err := time.Parse(time.RFC3339, remoteMod); err == nil {
		rec.RemoteModifiedAt = t
	}

	return &rec, nil
}

// RelatedIDs returns the related ids stored for a task, in insertion order.
func (db *DB) RelatedIDs(ctx context.Context, taskID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT related_id FROM task_relation_links WHERE task_id = ? ORDER BY rowid", taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relation links: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan relation link: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relation links: %w", err)
	}

	return ids, nil
}

// RunWriter is the prepared write path for one sync run. Statements are
// prepared once and reused for every record in the run.
type RunWriter struct {
	upsertTask *sql.Stmt
	insertLink *sql.Stmt
}

// NewRunWriter prepares the upsert and relation insert statements.
// The caller MUST call Close() when the run ends.
func (db *DB) NewRunWriter(ctx context.Context) (*RunWriter, error) {
	upsert, err := db.conn.PrepareContext(ctx, `
	INSERT INTO tasks (
		client_id, remote_id, title, payload, sync_status,
		local_modified_at, remote_modified_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(remote_id) DO UPDATE SET
		title = excluded.title,
		payload = excluded.payload,
		sync_status = excluded.sync_status,
		local_modified_at = excluded.local_modified_at,
		remote_modified_at = excluded.remote_modified_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare task upsert: %w", err)
	}

	insert, err := db.conn.PrepareContext(ctx, `
	INSERT INTO task_relation_links (task_id, related_id)
	VALUES (?, ?)
	ON CONFLICT(task_id, related_id) DO NOTHING
	`)
	if err != nil {
		_ = upsert.Close()
		return nil, fmt.Errorf("failed to prepare link insert: %w", err)
	}

	return &RunWriter{upsertTask: upsert, insertLink: insert}, nil
}

// UpsertTask inserts or replaces a task record, keyed by remote id.
// The client id is assigned on first insert and survives later upserts.
func (w *RunWriter) UpsertTask(ctx context.Context, rec *record.TaskRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("invalid task record: %w", err)
	}

	clientID := rec.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	_, err := w.upsertTask.ExecContext(ctx,
		clientID,
		rec.RemoteID,
		rec.Title,
		rec.Payload,
		rec.SyncStatus,
		rec.LocalModifiedAt.UTC().Format(time.RFC3339),
		rec.RemoteModifiedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", rec.RemoteID, err)
	}

	return nil
}

// InsertRelationLink stores one relation edge. Duplicate pairs are ignored.
func (w *RunWriter) InsertRelationLink(ctx context.Context, link record.RelationLink) error {
	if link.TaskID == "" || link.RelatedID == "" {
		return fmt.Errorf("relation link requires both ids")
	}

	_, err := w.insertLink.ExecContext(ctx, link.TaskID, link.RelatedID)
	if err != nil {
		return fmt.Errorf("failed to insert relation link %s->%s: %w", link.TaskID, link.RelatedID, err)
	}

	return nil
}

// Close releases the prepared statements.
func (w *RunWriter) Close() error {
	var firstErr error
	if err := w.upsertTask.Close(); err != nil {
		firstErr = err
	}
	if err := w.insertLink.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
