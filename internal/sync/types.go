package sync

import (
	"context"
	"fmt"
	"time"

	"db-local-sync/internal/database"
	"db-local-sync/internal/snapshot"
)

// Source reads the full content of one side of the pair.
type Source interface {
	Fetch(ctx context.Context, id database.Identity) (*snapshot.Snapshot, error)
}

// Mutator performs the destructive steps of a sync.
type Mutator interface {
	Backup(ctx context.Context, source database.Identity, backupName string) error
	Replace(ctx context.Context, target database.Identity, snap *snapshot.Snapshot) error
	RelaxValidation(ctx context.Context, target database.Identity) error
}

// State is the position of the current cycle in the sync state machine.
//
//	Idle -> FetchingLocal -> FetchingRemote -> Comparing
//	Comparing -> Idle                                (no change)
//	Comparing -> AwaitingConfirmation -> Idle        (ignored)
//	AwaitingConfirmation -> Replacing -> Idle        (approved)
//
// FetchingLocal is skipped once the local snapshot is cached. Any failure
// returns to Idle.
type State int

const (
	StateIdle State = iota
	StateFetchingLocal
	StateFetchingRemote
	StateComparing
	StateAwaitingConfirmation
	StateReplacing
)

var stateNames = [...]string{
	StateIdle:                 "idle",
	StateFetchingLocal:        "fetching_local",
	StateFetchingRemote:       "fetching_remote",
	StateComparing:            "comparing",
	StateAwaitingConfirmation: "awaiting_confirmation",
	StateReplacing:            "replacing",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is how a cycle ended, or where RunCycle left it.
type Outcome string

const (
	OutcomeSkipped              Outcome = "skipped"
	OutcomeNoChange             Outcome = "no_change"
	OutcomeAwaitingConfirmation Outcome = "awaiting_confirmation"
	OutcomeIgnored              Outcome = "ignored"
	OutcomeReplaced             Outcome = "replaced"
	OutcomeFailed               Outcome = "failed"
	OutcomePartialReplace       Outcome = "partial_replace"
	OutcomeAbandoned            Outcome = "abandoned"
)

// PendingAction is a detected divergence waiting on the confirmation gate.
type PendingAction struct {
	ID         string             `json:"id"`
	Remote     *snapshot.Snapshot `json:"-"`
	BackupName string             `json:"backup_name"`
	DetectedAt time.Time          `json:"detected_at"`
	Tables     int                `json:"tables"`
	Rows       int64              `json:"rows"`
}

// Status is a point-in-time view of an Orchestrator.
type Status struct {
	State            State          `json:"state"`
	InFlight         bool           `json:"in_flight"`
	Pending          *PendingAction `json:"pending,omitempty"`
	HasLocalSnapshot bool           `json:"has_local_snapshot"`
	LocalFingerprint string         `json:"local_fingerprint,omitempty"`
	Stale            bool           `json:"stale"`
	LastOutcome      Outcome        `json:"last_outcome,omitempty"`
	LastError        string         `json:"last_error,omitempty"`
	LastCycleAt      time.Time      `json:"last_cycle_at,omitempty"`
}
