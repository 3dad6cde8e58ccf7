package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"db-local-sync/internal/logger"
)

type recorder struct {
	got []Notification
}

func (r *recorder) Notify(ctx context.Context, n Notification) {
	r.got = append(r.got, n)
}

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Notify(context.Background(), Notification{
		Level:   Critical,
		Title:   "Sync failed",
		Message: "restore from shop_backup",
		Err:     errors.New("replace of local failed"),
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local),
	})

	out := buf.String()
	assert.Contains(t, out, "03:04:05")
	assert.Contains(t, out, "[critical]")
	assert.Contains(t, out, "Sync failed - restore from shop_backup")
	assert.Contains(t, out, "replace of local failed")
}

func TestLog_LevelMapping(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	Log{}.Notify(context.Background(), Notification{Level: Success, Event: "replace_ok", Title: "synced"})
	Log{}.Notify(context.Background(), Notification{Level: Warning, Event: "backup_failed", Err: errors.New("boom")})
	Log{}.Notify(context.Background(), Notification{Level: Critical, Event: "partial_replace"})

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zap.InfoLevel, entries[0].Level)
		assert.Equal(t, zap.WarnLevel, entries[1].Level)
		assert.Equal(t, zap.ErrorLevel, entries[2].Level)
		assert.Equal(t, "backup_failed", entries[1].ContextMap()["event"])
	}
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, b}.Notify(context.Background(), Notification{Title: "x"})

	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
}
