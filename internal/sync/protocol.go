package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"db-local-sync/internal/database"
	"db-local-sync/internal/logger"
	"db-local-sync/internal/notify"
	"db-local-sync/internal/snapshot"
)

// BackupAndReplace copies target to backupName and then overwrites target with
// snap. Replace is never attempted unless the backup succeeded, so at least
// one of the two contents always survives. backedUp, if set, runs between the
// two steps.
//
// On failure the returned Step names the call that failed. A replace failure
// wraps ErrPartialReplace.
func BackupAndReplace(ctx context.Context, m Mutator, target database.Identity, backupName string, snap *snapshot.Snapshot, backedUp func()) (Step, error) {
	logger.Log.Info("Backing up database...", zap.String("source", target.Database), zap.String("backup", backupName))
	if err := m.Backup(ctx, target, backupName); err != nil {
		return StepBackup, err
	}
	if backedUp != nil {
		backedUp()
	}

	logger.Log.Info("Updating local database...", zap.String("target", target.Database), zap.Stringer("snapshot", snap))
	if err := m.Replace(ctx, target, snap); err != nil {
		return StepReplace, fmt.Errorf("%w: %w", ErrPartialReplace, err)
	}
	return StepReplace, nil
}

// PartialReplaceNotification is the critical alert raised when a replace
// failed after its backup succeeded.
func PartialReplaceNotification(db, backupName string, err error) notify.Notification {
	return notify.Notification{
		Level: notify.Critical,
		Event: "partial_replace",
		Title: "Local database may be corrupt",
		Message: fmt.Sprintf("Replacing %s failed after backup. Its previous content is in %s; restore it manually.",
			db, backupName),
		Err: err,
	}
}

// replace runs the approved half of a cycle.
func (o *Orchestrator) replace(ctx context.Context, c *cycle, p *PendingAction) {
	o.setState(StateReplacing)
	c.backupName = p.BackupName

	logger.Log.Info("Replacing local database", zap.String("cycle_id", c.id), zap.String("backup", p.BackupName))
	step, err := BackupAndReplace(ctx, o.mutator, o.local, p.BackupName, p.Remote, func() {
		o.notify(notify.Notification{
			Level:   notify.Info,
			Event:   "backup_ok",
			Title:   "Local database backed up",
			Message: fmt.Sprintf("%s copied to %s", o.local.Database, p.BackupName),
		})
	})
	switch {
	case err != nil && step == StepBackup:
		o.abort(c, StepBackup, err)
		return
	case err != nil:
		o.partialReplace(c, p, err)
		return
	}

	// The orchestrator trusts its own write; no re-fetch.
	o.mu.Lock()
	o.cachedLocal = p.Remote
	o.stale = false
	o.mu.Unlock()

	o.notify(notify.Notification{
		Level:   notify.Success,
		Event:   "replace_ok",
		Title:   "DB-Local-Sync",
		Message: "Booya! Databases are synced!",
	})
	o.finish(c, OutcomeReplaced, nil)
}

// partialReplace handles a replace failure after a successful backup. The
// local database may be dropped or half loaded, so the cached snapshot is
// discarded and the pair is marked stale. The next cycle re-reads the real
// local content, and any further replace needs a new approval.
func (o *Orchestrator) partialReplace(c *cycle, p *PendingAction, err error) {
	cerr := &CycleError{CycleID: c.id, Step: StepReplace, Err: err}

	o.mu.Lock()
	o.cachedLocal = nil
	o.stale = true
	o.mu.Unlock()

	n := PartialReplaceNotification(o.local.Database, p.BackupName, cerr)
	n.Message += " Automatic retry is disabled."
	o.notify(n)
	o.finish(c, OutcomePartialReplace, cerr)
}
