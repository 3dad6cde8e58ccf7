package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"db-local-sync/internal/config"
	"db-local-sync/internal/logger"
)

// SQLStore implements Store on database/sql. The dialect covers the few
// statements that differ between MySQL and SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

type dialect struct {
	name        string
	schema      []string
	upsertState string
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sync_state (
			pair_name          VARCHAR(255) NOT NULL PRIMARY KEY,
			local_fingerprint  CHAR(64) NULL,
			remote_fingerprint CHAR(64) NULL,
			last_sync_time     DATETIME(6) NULL,
			stale              BOOLEAN NOT NULL DEFAULT FALSE,
			status             VARCHAR(32) NOT NULL,
			error_message      TEXT NULL,
			updated_at         DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sync_history (
			id                 CHAR(36) NOT NULL PRIMARY KEY,
			pair_name          VARCHAR(255) NOT NULL,
			started_at         DATETIME(6) NOT NULL,
			completed_at       DATETIME(6) NULL,
			direction          VARCHAR(32) NOT NULL,
			outcome            VARCHAR(32) NOT NULL,
			tables_synced      TEXT NOT NULL,
			total_rows         BIGINT NOT NULL DEFAULT 0,
			remote_fingerprint CHAR(64) NULL,
			backup_name        VARCHAR(255) NULL,
			error_message      TEXT NULL,
			INDEX idx_sync_history_started (started_at)
		)`,
	},
	upsertState: `INSERT INTO sync_state (pair_name, local_fingerprint, remote_fingerprint, last_sync_time, stale, status, error_message, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
			  local_fingerprint = VALUES(local_fingerprint),
			  remote_fingerprint = VALUES(remote_fingerprint),
			  last_sync_time = VALUES(last_sync_time),
			  stale = VALUES(stale),
			  status = VALUES(status),
			  error_message = VALUES(error_message),
			  updated_at = VALUES(updated_at)`,
}

func NewMySQLStore(cfg config.StateStorage) (*SQLStore, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC

	db, err := sql.Open("mysql", mc.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}

	// Retry loop for Ping
	maxRetries := 30
	for i := 0; i < maxRetries; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		logger.Log.Info("Waiting for state DB...", zap.Error(err), zap.Int("attempt", i+1))
		time.Sleep(1 * time.Second)
	}

	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping mysql after retries: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	return &SQLStore{db: db, dialect: mysqlDialect}, nil
}

// Open builds the store selected by cfg.Type and creates its tables. Type
// "none" (or empty) returns a nil Store: history is not recorded.
func Open(ctx context.Context, cfg config.StateStorage) (Store, error) {
	var (
		s   *SQLStore
		err error
	)
	switch cfg.Type {
	case "mysql":
		s, err = NewMySQLStore(cfg)
	case "sqlite":
		s, err = NewSQLiteStore(cfg.FilePath)
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown state storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the state and history tables if they do not exist.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s state store: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) GetSyncState(ctx context.Context, pairName string) (*SyncState, error) {
	query := `SELECT pair_name, local_fingerprint, remote_fingerprint, last_sync_time, stale, status, error_message, updated_at
			  FROM sync_state WHERE pair_name = ?`

	row := s.db.QueryRowContext(ctx, query, pairName)

	var state SyncState
	err := row.Scan(
		&state.PairName,
		&state.LocalFingerprint,
		&state.RemoteFingerprint,
		&state.LastSyncTime,
		&state.Stale,
		&state.Status,
		&state.ErrorMessage,
		&state.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &state, nil
}

func (s *SQLStore) UpdateSyncState(ctx context.Context, state *SyncState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, s.dialect.upsertState,
		state.PairName,
		state.LocalFingerprint,
		state.RemoteFingerprint,
		state.LastSyncTime,
		state.Stale,
		state.Status,
		state.ErrorMessage,
		state.UpdatedAt,
	)

	return err
}

func (s *SQLStore) CreateSyncHistory(ctx context.Context, history *SyncHistory) error {
	query := `INSERT INTO sync_history (id, pair_name, started_at, completed_at, direction, outcome, tables_synced, total_rows, remote_fingerprint, backup_name, error_message)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		history.ID,
		history.PairName,
		history.StartedAt,
		history.CompletedAt,
		history.Direction,
		history.Outcome,
		history.TablesSynced,
		history.TotalRows,
		history.RemoteFingerprint,
		history.BackupName,
		history.ErrorMessage,
	)

	return err
}

func (s *SQLStore) UpdateSyncHistory(ctx context.Context, history *SyncHistory) error {
	query := `UPDATE sync_history SET completed_at = ?, outcome = ?, tables_synced = ?, total_rows = ?, remote_fingerprint = ?, backup_name = ?, error_message = ? WHERE id = ?`

	_, err := s.db.ExecContext(ctx, query,
		history.CompletedAt,
		history.Outcome,
		history.TablesSynced,
		history.TotalRows,
		history.RemoteFingerprint,
		history.BackupName,
		history.ErrorMessage,
		history.ID,
	)

	return err
}

func (s *SQLStore) GetSyncHistory(ctx context.Context, limit, offset int) ([]*SyncHistory, error) {
	query := `SELECT id, pair_name, started_at, completed_at, direction, outcome, tables_synced, total_rows, remote_fingerprint, backup_name, error_message
			  FROM sync_history ORDER BY started_at DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []*SyncHistory
	for rows.Next() {
		var h SyncHistory
		err := rows.Scan(
			&h.ID,
			&h.PairName,
			&h.StartedAt,
			&h.CompletedAt,
			&h.Direction,
			&h.Outcome,
			&h.TablesSynced,
			&h.TotalRows,
			&h.RemoteFingerprint,
			&h.BackupName,
			&h.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}
		history = append(history, &h)
	}

	return history, rows.Err()
}
