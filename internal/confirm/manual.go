package confirm

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"db-local-sync/internal/logger"
)

var ErrUnknownPrompt = errors.New("no pending prompt with that id")

// Manual keeps prompts pending until Resolve is called, typically from the
// HTTP API. With a non-zero timeout, unanswered prompts resolve to Ignored.
type Manual struct {
	timeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingPrompt
}

type pendingPrompt struct {
	prompt Prompt
	ch     chan Decision
	timer  *time.Timer
}

func NewManual(timeout time.Duration) *Manual {
	return &Manual{
		timeout: timeout,
		pending: make(map[string]*pendingPrompt),
	}
}

func (m *Manual) Ask(ctx context.Context, p Prompt) <-chan Decision {
	ch := make(chan Decision, 1)
	pp := &pendingPrompt{prompt: p, ch: ch}

	m.mu.Lock()
	m.pending[p.ID] = pp
	if m.timeout > 0 {
		pp.timer = time.AfterFunc(m.timeout, func() {
			if m.Resolve(p.ID, Ignored) == nil {
				logger.Log.Info("Confirmation timed out", zap.String("prompt_id", p.ID))
			}
		})
	}
	m.mu.Unlock()

	logger.Log.Info("Awaiting confirmation", zap.String("prompt_id", p.ID), zap.String("title", p.Title))
	return ch
}

// Resolve delivers d to the prompt's asker and forgets the prompt.
func (m *Manual) Resolve(id string, d Decision) error {
	m.mu.Lock()
	pp, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrUnknownPrompt
	}
	if pp.timer != nil {
		pp.timer.Stop()
	}
	pp.ch <- d
	close(pp.ch)
	return nil
}

// Pending lists unresolved prompts, oldest first.
func (m *Manual) Pending() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Prompt, 0, len(m.pending))
	for _, pp := range m.pending {
		out = append(out, pp.prompt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
