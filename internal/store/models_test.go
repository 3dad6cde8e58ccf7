package store

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncHistory_MarshalJSON(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	running, err := json.Marshal(&SyncHistory{ID: "c1", PairName: "shop", StartedAt: started, Outcome: "running"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"c1","pair":"shop","direction":"","outcome":"running","started_at":"2024-05-01T12:00:00Z","total_rows":0}`, string(running))

	done, err := json.Marshal(SyncHistory{
		ID:           "c2",
		StartedAt:    started,
		CompletedAt:  sql.NullTime{Time: started.Add(time.Minute), Valid: true},
		Outcome:      "failed",
		ErrorMessage: sql.NullString{String: "timeout", Valid: true},
	})
	require.NoError(t, err)

	var v map[string]any
	require.NoError(t, json.Unmarshal(done, &v))
	assert.Equal(t, "2024-05-01T12:01:00Z", v["completed_at"])
	assert.Equal(t, "timeout", v["error"])
	assert.NotContains(t, v, "backup_name")
}
