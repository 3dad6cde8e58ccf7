package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"db-local-sync/internal/confirm"
	"db-local-sync/internal/database"
	"db-local-sync/internal/logger"
	"db-local-sync/internal/notify"
	"db-local-sync/internal/snapshot"
	"db-local-sync/internal/store"
)

const defaultBackupSuffix = "_backup"

type Options struct {
	Local  database.Identity
	Remote database.Identity

	// BackupSuffix is appended to the local database name to form the backup
	// target. Defaults to "_backup".
	BackupSuffix string

	Notifier notify.Notifier
	// Store records cycle history; nil disables recording.
	Store store.Store
	Now   func() time.Time
}

// Orchestrator keeps the local database in line with the remote one. It owns
// the cached local snapshot and runs at most one cycle at a time.
type Orchestrator struct {
	local        database.Identity
	remote       database.Identity
	backupSuffix string

	source   Source
	gate     confirm.Gate
	mutator  Mutator
	notifier notify.Notifier
	store    store.Store
	now      func() time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	scheduler *Scheduler

	mu          sync.Mutex
	state       State
	inFlight    bool
	cachedLocal *snapshot.Snapshot
	pending     *PendingAction
	stale       bool
	lastOutcome Outcome
	lastErr     error
	lastCycleAt time.Time
}

func NewOrchestrator(source Source, gate confirm.Gate, mutator Mutator, opts Options) (*Orchestrator, error) {
	if source == nil || gate == nil || mutator == nil {
		return nil, fmt.Errorf("source, gate and mutator are required")
	}
	if opts.Local.Database == "" || opts.Remote.Database == "" {
		return nil, fmt.Errorf("local and remote database names are required")
	}
	if opts.BackupSuffix == "" {
		opts.BackupSuffix = defaultBackupSuffix
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		local:        opts.Local,
		remote:       opts.Remote,
		backupSuffix: opts.BackupSuffix,
		source:       source,
		gate:         gate,
		mutator:      mutator,
		notifier:     opts.Notifier,
		store:        opts.Store,
		now:          opts.Now,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateIdle,
	}, nil
}

// StartWatching relaxes the local server's validation mode unless strict is
// set, runs one cycle immediately and then one per interval. A zero interval
// disables the timer; cycles then run only through RunCycle.
func (o *Orchestrator) StartWatching(ctx context.Context, interval time.Duration, strict bool) error {
	if !strict {
		if err := o.mutator.RelaxValidation(ctx, o.local); err != nil {
			err = fmt.Errorf("%w: %w", ErrValidationRelaxation, err)
			o.notify(notify.Notification{
				Level:   notify.Critical,
				Event:   "validation_relaxation_failed",
				Title:   "Cannot start syncing",
				Message: fmt.Sprintf("Could not relax validation mode on %s", o.local),
				Err:     err,
			})
			return err
		}
	}

	logger.Log.Info("Watching for changes",
		zap.String("database", o.remote.Database),
		zap.String("host", o.remote.Host),
		zap.Duration("interval", interval),
	)

	o.RunCycle(o.ctx)

	if interval > 0 {
		s := NewScheduler(interval, func() { o.RunCycle(o.ctx) })
		if err := s.Start(); err != nil {
			return err
		}
		o.mu.Lock()
		o.scheduler = s
		o.mu.Unlock()
	}
	return nil
}

// Stop halts the timer and abandons any cycle still waiting on confirmation.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	s := o.scheduler
	o.scheduler = nil
	o.mu.Unlock()

	if s != nil {
		s.Stop()
	}
	o.cancel()
	o.wg.Wait()
	logger.Log.Info("Stopped sync orchestrator")
}

// Wait blocks until no cycle is suspended on the confirmation gate or
// running the replace protocol.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// RunCycle runs one detect step of the sync protocol. It returns
// OutcomeSkipped without side effects if a cycle is already in flight. On
// divergence it returns OutcomeAwaitingConfirmation and the cycle continues
// in the background once the gate decides.
func (o *Orchestrator) RunCycle(ctx context.Context) (Outcome, error) {
	o.mu.Lock()
	if o.inFlight {
		state := o.state
		o.mu.Unlock()
		logger.Log.Info("Sync cycle already in flight, skipping", zap.Stringer("state", state))
		return OutcomeSkipped, nil
	}
	o.inFlight = true
	cached := o.cachedLocal
	o.mu.Unlock()

	c := &cycle{id: uuid.NewString(), startedAt: o.now()}
	logger.Log.Info("Sync cycle started", zap.String("cycle_id", c.id))
	o.recordStart(c)

	if cached == nil {
		o.setState(StateFetchingLocal)
		local, err := o.source.Fetch(ctx, o.local)
		if err != nil {
			return o.abort(c, StepFetchLocal, err)
		}
		o.mu.Lock()
		o.cachedLocal = local
		o.mu.Unlock()
		cached = local
		logger.Log.Info("Established local snapshot", zap.String("cycle_id", c.id), zap.Stringer("snapshot", local))
	}

	o.setState(StateFetchingRemote)
	remote, err := o.source.Fetch(ctx, o.remote)
	if err != nil {
		return o.abort(c, StepFetchRemote, err)
	}
	c.remote = remote

	o.setState(StateComparing)
	if snapshot.Equal(cached, remote) {
		logger.Log.Info("Database has not changed since last time", zap.String("cycle_id", c.id))
		o.mu.Lock()
		if o.stale {
			// cached was re-read after the failed replace, so local is whole again.
			o.stale = false
			logger.Log.Info("Local database matches remote, clearing stale flag", zap.String("cycle_id", c.id))
		}
		o.mu.Unlock()
		o.finish(c, OutcomeNoChange, nil)
		return OutcomeNoChange, nil
	}

	pending := &PendingAction{
		ID:         c.id,
		Remote:     remote,
		BackupName: o.backupName(),
		DetectedAt: o.now(),
		Tables:     len(remote.Tables),
		Rows:       remote.RowCount(),
	}
	o.mu.Lock()
	o.pending = pending
	o.state = StateAwaitingConfirmation
	o.mu.Unlock()

	logger.Log.Info("Remote database diverged, awaiting confirmation",
		zap.String("cycle_id", c.id),
		zap.Stringer("local", cached),
		zap.Stringer("remote", remote),
	)

	decisions := o.gate.Ask(o.ctx, o.prompt(pending))
	o.wg.Add(1)
	go o.await(c, pending, decisions)

	return OutcomeAwaitingConfirmation, nil
}

// await is the continuation of a cycle suspended on the gate.
func (o *Orchestrator) await(c *cycle, p *PendingAction, decisions <-chan confirm.Decision) {
	defer o.wg.Done()

	decision := confirm.Ignored
	select {
	case d, ok := <-decisions:
		if ok {
			decision = d
		}
	case <-o.ctx.Done():
		logger.Log.Info("Shutting down with confirmation still pending", zap.String("cycle_id", c.id))
		o.finish(c, OutcomeAbandoned, nil)
		return
	}

	logger.Log.Info("Confirmation resolved", zap.String("cycle_id", c.id), zap.Stringer("decision", decision))
	if decision != confirm.Approved {
		o.finish(c, OutcomeIgnored, nil)
		return
	}
	// Once approved, the protocol runs to completion even if Stop is called;
	// Stop waits for it.
	o.replace(context.WithoutCancel(o.ctx), c, p)
}

// CachedLocal returns the snapshot believed to match the local database, or
// nil if it is not established.
func (o *Orchestrator) CachedLocal() *snapshot.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cachedLocal
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.statusLocked()
}

func (o *Orchestrator) statusLocked() Status {
	st := Status{
		State:            o.state,
		InFlight:         o.inFlight,
		HasLocalSnapshot: o.cachedLocal != nil,
		Stale:            o.stale,
		LastOutcome:      o.lastOutcome,
		LastCycleAt:      o.lastCycleAt,
	}
	if o.cachedLocal != nil {
		st.LocalFingerprint = snapshot.Fingerprint(o.cachedLocal)
	}
	if o.pending != nil {
		p := *o.pending
		st.Pending = &p
	}
	if o.lastErr != nil {
		st.LastError = o.lastErr.Error()
	}
	return st
}

func (o *Orchestrator) backupName() string {
	name := o.local.Database + o.backupSuffix
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stale {
		// The regular backup still holds the last good copy from before the
		// failed replace.
		name += "_partial"
	}
	return name
}

func (o *Orchestrator) prompt(p *PendingAction) confirm.Prompt {
	msg := fmt.Sprintf("%s on %s changed (%d tables, %d rows). Back up local %s to %s and replace it?",
		o.remote.Database, o.remote.Host, p.Tables, p.Rows, o.local.Database, p.BackupName)

	o.mu.Lock()
	stale := o.stale
	o.mu.Unlock()
	if stale {
		msg = fmt.Sprintf("The previous sync failed part-way; %s%s holds the pre-sync copy. ", o.local.Database, o.backupSuffix) + msg
	}

	return confirm.Prompt{
		ID:        p.ID,
		Title:     "Remote database is updated!",
		Message:   msg,
		Action:    "Update",
		CreatedAt: p.DetectedAt,
	}
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()
	logger.Log.Debug("Sync state transition", zap.Stringer("from", prev), zap.Stringer("to", s))
}

// abort ends a cycle after a recoverable failure. Persistent state is left
// untouched so the next tick retries from scratch.
func (o *Orchestrator) abort(c *cycle, step Step, err error) (Outcome, error) {
	cerr := &CycleError{CycleID: c.id, Step: step, Err: err}
	o.notify(notify.Notification{
		Level:   notify.Warning,
		Event:   string(step) + "_failed",
		Title:   "Sync failed",
		Message: fmt.Sprintf("%s failure during %s; will retry on the next check", Kind(err), step),
		Err:     cerr,
	})
	o.finish(c, OutcomeFailed, cerr)
	return OutcomeFailed, cerr
}

// finish returns the state machine to Idle. Callers update cachedLocal first.
// The status persisted with the outcome is taken in the same critical section,
// before another cycle can start.
func (o *Orchestrator) finish(c *cycle, outcome Outcome, err error) {
	o.mu.Lock()
	o.state = StateIdle
	o.pending = nil
	o.lastOutcome = outcome
	o.lastErr = err
	o.lastCycleAt = o.now()
	o.inFlight = false
	st := o.statusLocked()
	o.mu.Unlock()

	fields := []zap.Field{zap.String("cycle_id", c.id), zap.String("outcome", string(outcome))}
	if err != nil {
		fields = append(fields, zap.String("kind", Kind(err)), zap.Error(err))
	}
	logger.Log.Info("Sync cycle finished", fields...)

	o.recordFinish(c, outcome, err, st)
}

func (o *Orchestrator) notify(n notify.Notification) {
	if n.Time.IsZero() {
		n.Time = o.now()
	}
	o.notifier.Notify(o.ctx, n)
}

// cycle is the bookkeeping for one run of the protocol.
type cycle struct {
	id         string
	startedAt  time.Time
	remote     *snapshot.Snapshot
	backupName string
	history    *store.SyncHistory
}
