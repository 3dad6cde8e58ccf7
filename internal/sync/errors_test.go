package sync

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"db-local-sync/internal/database"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err         error
		kind        string
		recoverable bool
	}{
		{nil, "", false},
		{fmt.Errorf("%w: timeout", database.ErrConnectivity), "connectivity", true},
		{fmt.Errorf("%w: syntax", database.ErrQuery), "query", true},
		{fmt.Errorf("%w: %w", ErrPartialReplace, database.ErrConnectivity), "partial_replace", false},
		{fmt.Errorf("%w: denied", ErrValidationRelaxation), "validation_relaxation", false},
		{errors.New("boom"), "unknown", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, Kind(tt.err), "%v", tt.err)
		assert.Equal(t, tt.recoverable, Recoverable(tt.err), "%v", tt.err)
	}
}

func TestCycleError(t *testing.T) {
	err := &CycleError{CycleID: "c1", Step: StepBackup, Err: database.ErrQuery}

	assert.Equal(t, "sync cycle c1 failed at backup: query failure", err.Error())
	assert.True(t, errors.Is(err, database.ErrQuery))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_confirmation", StateAwaitingConfirmation.String())
	assert.Equal(t, "state(42)", State(42).String())

	text, err := StateReplacing.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "replacing", string(text))
}
