package sync

import (
	"errors"
	"fmt"

	"db-local-sync/internal/database"
)

var (
	// ErrValidationRelaxation aborts startup: the local server could not be
	// switched out of strict mode.
	ErrValidationRelaxation = errors.New("validation relaxation failure")
	// ErrPartialReplace means the backup exists but the local database may be
	// half replaced. It is never retried automatically.
	ErrPartialReplace = errors.New("partial replace failure")
)

// Step names the collaborator call a cycle was making when it failed.
type Step string

const (
	StepFetchLocal  Step = "fetch_local"
	StepFetchRemote Step = "fetch_remote"
	StepBackup      Step = "backup"
	StepReplace     Step = "replace"
)

type CycleError struct {
	CycleID string
	Step    Step
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("sync cycle %s failed at %s: %v", e.CycleID, e.Step, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// Kind labels err for notifications and history.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPartialReplace):
		return "partial_replace"
	case errors.Is(err, ErrValidationRelaxation):
		return "validation_relaxation"
	case errors.Is(err, database.ErrConnectivity):
		return "connectivity"
	case errors.Is(err, database.ErrQuery):
		return "query"
	}
	return "unknown"
}

// Recoverable reports whether the next tick may simply retry.
func Recoverable(err error) bool {
	return err != nil && !errors.Is(err, ErrPartialReplace) && !errors.Is(err, ErrValidationRelaxation)
}
