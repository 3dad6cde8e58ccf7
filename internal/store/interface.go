package store

import (
	"context"
)

type Store interface {
	// Sync State
	GetSyncState(ctx context.Context, pairName string) (*SyncState, error)
	UpdateSyncState(ctx context.Context, state *SyncState) error

	// History
	CreateSyncHistory(ctx context.Context, history *SyncHistory) error
	UpdateSyncHistory(ctx context.Context, history *SyncHistory) error
	GetSyncHistory(ctx context.Context, limit, offset int) ([]*SyncHistory, error)

	// General
	Close() error
}
