package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mfenderov/duyuru-watch/pkg/models"
	_ "modernc.org/sqlite"
)

const backendSQLite = "sqlite"

// SQLite stores the snapshot as two rows of a key/value table, replaced in
// one transaction.
type SQLite struct {
	db           *sql.DB
	snapshotKey  string
	timestampKey string
}

// NewSQLite opens (and creates if needed) the database at path.
func NewSQLite(path, snapshotKey, timestampKey string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, snapshotKey: snapshotKey, timestampKey: timestampKey}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) createSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);`)
	return err
}

func (s *SQLite) Load(ctx context.Context) (models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM kv WHERE key IN (?, ?)", s.snapshotKey, s.timestampKey)
	if err != nil {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendSQLite, Err: err}
	}
	defer rows.Close()

	var snap models.Snapshot
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Snapshot{}, &StoreError{Op: "load", Backend: backendSQLite, Err: err}
		}
		switch key {
		case s.snapshotKey:
			items, err := DecodeItems([]byte(value))
			if err != nil {
				return models.Snapshot{}, &StoreError{Op: "load", Backend: backendSQLite, Err: err}
			}
			snap.Items = items
		case s.timestampKey:
			snap.CheckedAt = DecodeTime(value)
		}
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, &StoreError{Op: "load", Backend: backendSQLite, Err: err}
	}
	return snap, nil
}

func (s *SQLite) Save(ctx context.Context, snap models.Snapshot) error {
	data, err := EncodeItems(snap.Items)
	if err != nil {
		return &StoreError{Op: "save", Backend: backendSQLite, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Op: "save", Backend: backendSQLite, Err: err}
	}
	defer tx.Rollback()

	const upsert = `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	now := time.Now().Unix()
	if _, err := tx.ExecContext(ctx, upsert, s.snapshotKey, string(data), now); err != nil {
		return &StoreError{Op: "save", Backend: backendSQLite, Err: err}
	}
	if _, err := tx.ExecContext(ctx, upsert, s.timestampKey, EncodeTime(snap.CheckedAt), now); err != nil {
		return &StoreError{Op: "save", Backend: backendSQLite, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "save", Backend: backendSQLite, Err: err}
	}
	return nil
}

func (s *SQLite) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key IN (?, ?)", s.snapshotKey, s.timestampKey); err != nil {
		return &StoreError{Op: "reset", Backend: backendSQLite, Err: err}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
