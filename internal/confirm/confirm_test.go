package confirm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Decision) Decision {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no decision delivered")
		return Ignored
	}
}

func TestAuto(t *testing.T) {
	assert.Equal(t, Approved, receive(t, Auto{}.Ask(context.Background(), Prompt{ID: "a"})))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "approved", Approved.String())
	assert.Equal(t, "ignored", Ignored.String())
}

func TestManual_Resolve(t *testing.T) {
	m := NewManual(0)
	ch := m.Ask(context.Background(), Prompt{ID: "p1", Title: "Remote database is updated!"})

	pending := m.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "p1", pending[0].ID)

	require.NoError(t, m.Resolve("p1", Approved))
	assert.Equal(t, Approved, receive(t, ch))
	assert.Empty(t, m.Pending())

	_, open := <-ch
	assert.False(t, open, "channel closes after the single decision")
	assert.ErrorIs(t, m.Resolve("p1", Approved), ErrUnknownPrompt)
}

func TestManual_PendingOrder(t *testing.T) {
	m := NewManual(0)
	now := time.Now()
	m.Ask(context.Background(), Prompt{ID: "late", CreatedAt: now.Add(time.Minute)})
	m.Ask(context.Background(), Prompt{ID: "early", CreatedAt: now})

	pending := m.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "early", pending[0].ID)
	assert.Equal(t, "late", pending[1].ID)
}

func TestManual_Timeout(t *testing.T) {
	m := NewManual(20 * time.Millisecond)
	ch := m.Ask(context.Background(), Prompt{ID: "p1"})

	assert.Equal(t, Ignored, receive(t, ch))
	assert.Empty(t, m.Pending())
}

func TestTerminal(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
		err  error
		want Decision
	}{
		{"approved", true, nil, Approved},
		{"declined", false, nil, Ignored},
		{"aborted", false, huh.ErrUserAborted, Ignored},
		{"broken terminal", false, errors.New("no tty"), Ignored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewTerminal(0)
			gate.ask = func(ctx context.Context, p Prompt) (bool, error) { return tt.ok, tt.err }
			assert.Equal(t, tt.want, receive(t, gate.Ask(context.Background(), Prompt{ID: "p"})))
		})
	}
}

func TestTerminal_TimeoutIgnores(t *testing.T) {
	gate := NewTerminal(10 * time.Millisecond)
	gate.ask = func(ctx context.Context, p Prompt) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}
	assert.Equal(t, Ignored, receive(t, gate.Ask(context.Background(), Prompt{ID: "p"})))
}
