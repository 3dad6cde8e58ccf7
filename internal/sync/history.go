package sync

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"go.uber.org/zap"

	"db-local-sync/internal/logger"
	"db-local-sync/internal/snapshot"
	"db-local-sync/internal/store"
)

const (
	directionRemoteToLocal = "remote->local"
	storeTimeout           = 5 * time.Second
)

// PairName identifies the local/remote pair in the state store.
func (o *Orchestrator) PairName() string {
	return o.local.Database + "<-" + o.remote.Host + "/" + o.remote.Database
}

func (o *Orchestrator) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(o.ctx), storeTimeout)
}

// recordStart and recordFinish persist cycle history. Store failures are
// logged and never affect the cycle.
func (o *Orchestrator) recordStart(c *cycle) {
	if o.store == nil {
		return
	}
	ctx, cancel := o.storeContext()
	defer cancel()

	c.history = &store.SyncHistory{
		ID:        c.id,
		PairName:  o.PairName(),
		StartedAt: c.startedAt,
		Direction: directionRemoteToLocal,
		Outcome:   "running",
	}
	if err := o.store.CreateSyncHistory(ctx, c.history); err != nil {
		logger.Log.Warn("Failed to record sync cycle start", zap.String("cycle_id", c.id), zap.Error(err))
		c.history = nil
	}
}

func (o *Orchestrator) recordFinish(c *cycle, outcome Outcome, err error, st Status) {
	if o.store == nil {
		return
	}
	ctx, cancel := o.storeContext()
	defer cancel()

	now := o.now()
	errMsg := sql.NullString{}
	if err != nil {
		errMsg = sql.NullString{String: err.Error(), Valid: true}
	}

	if c.history != nil {
		h := c.history
		h.CompletedAt = sql.NullTime{Time: now, Valid: true}
		h.Outcome = string(outcome)
		h.ErrorMessage = errMsg
		if c.remote != nil {
			h.TablesSynced = strings.Join(c.remote.TableNames(), ",")
			h.TotalRows = c.remote.RowCount()
			h.RemoteFingerprint = sql.NullString{String: snapshot.Fingerprint(c.remote), Valid: true}
		}
		if c.backupName != "" {
			h.BackupName = sql.NullString{String: c.backupName, Valid: true}
		}
		if err := o.store.UpdateSyncHistory(ctx, h); err != nil {
			logger.Log.Warn("Failed to record sync cycle outcome", zap.String("cycle_id", c.id), zap.Error(err))
		}
	}

	state := &store.SyncState{
		PairName:     o.PairName(),
		Stale:        st.Stale,
		Status:       string(outcome),
		ErrorMessage: errMsg,
		UpdatedAt:    now,
	}
	if st.LocalFingerprint != "" {
		state.LocalFingerprint = sql.NullString{String: st.LocalFingerprint, Valid: true}
	}
	if c.remote != nil {
		state.RemoteFingerprint = sql.NullString{String: snapshot.Fingerprint(c.remote), Valid: true}
	}
	if outcome == OutcomeReplaced {
		state.LastSyncTime = sql.NullTime{Time: now, Valid: true}
	} else if prev, err := o.store.GetSyncState(ctx, state.PairName); err == nil && prev != nil {
		state.LastSyncTime = prev.LastSyncTime
	}

	if err := o.store.UpdateSyncState(ctx, state); err != nil {
		logger.Log.Warn("Failed to record sync state", zap.String("pair", state.PairName), zap.Error(err))
	}
}
