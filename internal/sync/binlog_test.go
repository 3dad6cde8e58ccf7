package sync

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-mysql-org/go-mysql/canal"
	"github.com/go-mysql-org/go-mysql/schema"
	"github.com/stretchr/testify/assert"

	"db-local-sync/internal/config"
)

func rowsEvent(db, action string) *canal.RowsEvent {
	return &canal.RowsEvent{
		Table:  &schema.Table{Schema: db, Name: "items"},
		Action: action,
	}
}

func TestEventHandler_FiltersDatabase(t *testing.T) {
	l := newChangeListener(config.DatabaseConnection{Database: "shop"}, func() {})
	defer l.Stop()
	h := &eventHandler{listener: l}

	tests := []struct {
		name    string
		event   *canal.RowsEvent
		trigger bool
	}{
		{"insert", rowsEvent("shop", canal.InsertAction), true},
		{"update", rowsEvent("shop", canal.UpdateAction), true},
		{"delete", rowsEvent("shop", canal.DeleteAction), true},
		{"other database", rowsEvent("billing", canal.InsertAction), false},
		{"no table", &canal.RowsEvent{Action: canal.InsertAction}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, h.OnRow(tt.event))

			select {
			case <-l.changed:
				assert.True(t, tt.trigger, "unexpected trigger")
			default:
				assert.False(t, tt.trigger, "expected a trigger")
			}
		})
	}
}

func TestChangeListener_CoalescesBursts(t *testing.T) {
	l := newChangeListener(config.DatabaseConnection{Database: "shop"}, func() {})
	defer l.Stop()

	for i := 0; i < 50; i++ {
		l.notifyChange()
	}
	assert.Len(t, l.changed, 1)
}

func TestChangeListener_LoopTriggers(t *testing.T) {
	var runs atomic.Int32
	l := newChangeListener(config.DatabaseConnection{Database: "shop"}, func() { runs.Add(1) })
	go l.loop()

	h := &eventHandler{listener: l}
	assert.NoError(t, h.OnRow(rowsEvent("shop", canal.UpdateAction)))

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	l.Stop()
	l.notifyChange()
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 1, runs.Load(), "stopped listener does not trigger")
}
