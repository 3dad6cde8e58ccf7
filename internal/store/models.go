package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// SyncState is the last recorded state of one local/remote pair.
type SyncState struct {
	PairName          string         `db:"pair_name"`
	LocalFingerprint  sql.NullString `db:"local_fingerprint"`
	RemoteFingerprint sql.NullString `db:"remote_fingerprint"`
	LastSyncTime      sql.NullTime   `db:"last_sync_time"`
	Stale             bool           `db:"stale"`
	Status            string         `db:"status"`
	ErrorMessage      sql.NullString `db:"error_message"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// SyncHistory is one sync cycle from start to its terminal outcome.
type SyncHistory struct {
	ID                string         `db:"id"`
	PairName          string         `db:"pair_name"`
	StartedAt         time.Time      `db:"started_at"`
	CompletedAt       sql.NullTime   `db:"completed_at"`
	Direction         string         `db:"direction"`
	Outcome           string         `db:"outcome"`
	TablesSynced      string         `db:"tables_synced"`
	TotalRows         int64          `db:"total_rows"`
	RemoteFingerprint sql.NullString `db:"remote_fingerprint"`
	BackupName        sql.NullString `db:"backup_name"`
	ErrorMessage      sql.NullString `db:"error_message"`
}

// MarshalJSON flattens the nullable columns for API and CLI output.
func (h SyncHistory) MarshalJSON() ([]byte, error) {
	type view struct {
		ID                string     `json:"id"`
		Pair              string     `json:"pair"`
		Direction         string     `json:"direction"`
		Outcome           string     `json:"outcome"`
		StartedAt         time.Time  `json:"started_at"`
		CompletedAt       *time.Time `json:"completed_at,omitempty"`
		TablesSynced      string     `json:"tables_synced,omitempty"`
		TotalRows         int64      `json:"total_rows"`
		RemoteFingerprint string     `json:"remote_fingerprint,omitempty"`
		BackupName        string     `json:"backup_name,omitempty"`
		Error             string     `json:"error,omitempty"`
	}

	v := view{
		ID:                h.ID,
		Pair:              h.PairName,
		Direction:         h.Direction,
		Outcome:           h.Outcome,
		StartedAt:         h.StartedAt,
		TablesSynced:      h.TablesSynced,
		TotalRows:         h.TotalRows,
		RemoteFingerprint: h.RemoteFingerprint.String,
		BackupName:        h.BackupName.String,
		Error:             h.ErrorMessage.String,
	}
	if h.CompletedAt.Valid {
		v.CompletedAt = &h.CompletedAt.Time
	}
	return json.Marshal(v)
}
