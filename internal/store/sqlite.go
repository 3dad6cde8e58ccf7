package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sync_state (
			pair_name          TEXT NOT NULL PRIMARY KEY,
			local_fingerprint  TEXT NULL,
			remote_fingerprint TEXT NULL,
			last_sync_time     TIMESTAMP NULL,
			stale              BOOLEAN NOT NULL DEFAULT 0,
			status             TEXT NOT NULL,
			error_message      TEXT NULL,
			updated_at         TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_history (
			id                 TEXT NOT NULL PRIMARY KEY,
			pair_name          TEXT NOT NULL,
			started_at         TIMESTAMP NOT NULL,
			completed_at       TIMESTAMP NULL,
			direction          TEXT NOT NULL,
			outcome            TEXT NOT NULL,
			tables_synced      TEXT NOT NULL,
			total_rows         INTEGER NOT NULL DEFAULT 0,
			remote_fingerprint TEXT NULL,
			backup_name        TEXT NULL,
			error_message      TEXT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_history_started ON sync_history (started_at)`,
	},
	upsertState: `INSERT INTO sync_state (pair_name, local_fingerprint, remote_fingerprint, last_sync_time, stale, status, error_message, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(pair_name) DO UPDATE SET
			  local_fingerprint = excluded.local_fingerprint,
			  remote_fingerprint = excluded.remote_fingerprint,
			  last_sync_time = excluded.last_sync_time,
			  stale = excluded.stale,
			  status = excluded.status,
			  error_message = excluded.error_message,
			  updated_at = excluded.updated_at`,
}

// NewSQLiteStore opens (creating if needed) a file-backed store. Call Migrate
// before use, or use Open.
func NewSQLiteStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite state store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open sqlite state store %s: %w", path, err)
	}

	// SQLite serializes writers anyway
	db.SetMaxOpenConns(1)

	return &SQLStore{db: db, dialect: sqliteDialect}, nil
}
