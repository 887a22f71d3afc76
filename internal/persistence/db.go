// Package persistence provides SQLite-backed durable storage for
// world snapshots and the action audit trail.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/latchko/go-uprising/internal/world"
)

// DefaultKeepSnapshots is how many snapshot rows survive pruning.
const DefaultKeepSnapshots = 24

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		data BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		actor_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_events(at);
	CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_events(actor_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveSnapshot appends an encoded snapshot and prunes the history to
// the retention count.
func (db *DB) SaveSnapshot(ctx context.Context, createdAt time.Time, data []byte) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (created_at, data) VALUES (?, ?)`,
		createdAt.UnixNano(), data); err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM snapshots WHERE id NOT IN
		 (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)`,
		DefaultKeepSnapshots); err != nil {
		return fmt.Errorf("pruning snapshots: %w", err)
	}
	return tx.Commit()
}

// LatestSnapshot returns the most recent snapshot blob. Reports
// ErrNotFound when none has been written yet.
func (db *DB) LatestSnapshot(ctx context.Context) ([]byte, time.Time, error) {
	var row struct {
		CreatedAt int64  `db:"created_at"`
		Data      []byte `db:"data"`
	}
	err := db.conn.GetContext(ctx, &row,
		`SELECT created_at, data FROM snapshots ORDER BY id DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, fmt.Errorf("no snapshots: %w", world.ErrNotFound)
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("loading snapshot: %w", err)
	}
	return row.Data, time.Unix(0, row.CreatedAt).UTC(), nil
}

// AuditEvent is one recorded state-changing action.
type AuditEvent struct {
	ID      int64     `db:"id" json:"id"`
	At      time.Time `db:"-" json:"at"`
	ActorID string    `db:"actor_id" json:"actor_id"`
	Kind    string    `db:"kind" json:"kind"`
	Subject string    `db:"subject" json:"subject"`
	Detail  string    `db:"detail" json:"detail,omitempty"`
}

// AppendAudit records an action in the audit trail.
func (db *DB) AppendAudit(ctx context.Context, ev *AuditEvent) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO audit_events (at, actor_id, kind, subject, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		ev.At.UnixNano(), ev.ActorID, ev.Kind, ev.Subject, ev.Detail)
	if err != nil {
		return fmt.Errorf("appending audit event: %w", err)
	}
	return nil
}

// RecentAudit returns the newest audit events, most recent first.
func (db *DB) RecentAudit(ctx context.Context, limit int) ([]*AuditEvent, error) {
	var rows []struct {
		ID      int64  `db:"id"`
		At      int64  `db:"at"`
		ActorID string `db:"actor_id"`
		Kind    string `db:"kind"`
		Subject string `db:"subject"`
		Detail  string `db:"detail"`
	}
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT id, at, actor_id, kind, subject, detail
		 FROM audit_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("loading audit events: %w", err)
	}

	out := make([]*AuditEvent, len(rows))
	for i, r := range rows {
		out[i] = &AuditEvent{
			ID:      r.ID,
			At:      time.Unix(0, r.At).UTC(),
			ActorID: r.ActorID,
			Kind:    r.Kind,
			Subject: r.Subject,
			Detail:  r.Detail,
		}
	}
	return out, nil
}
