package confirm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/huh"
	"go.uber.org/zap"

	"db-local-sync/internal/logger"
)

// Terminal asks on the controlling terminal with an interactive yes/no form.
// Aborting the form, a timeout, or any form error resolves to Ignored.
type Terminal struct {
	timeout time.Duration
	ask     func(ctx context.Context, p Prompt) (bool, error)

	mu sync.Mutex // one form on screen at a time
}

func NewTerminal(timeout time.Duration) *Terminal {
	return &Terminal{timeout: timeout, ask: askHuh}
}

func (t *Terminal) Ask(ctx context.Context, p Prompt) <-chan Decision {
	ch := make(chan Decision, 1)
	go func() {
		defer close(ch)

		t.mu.Lock()
		defer t.mu.Unlock()

		if t.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}

		ok, err := t.ask(ctx, p)
		switch {
		case err == nil && ok:
			ch <- Approved
		case err == nil:
			ch <- Ignored
		case errors.Is(err, huh.ErrUserAborted):
			ch <- Ignored
		default:
			logger.Log.Warn("Confirmation prompt failed", zap.String("prompt_id", p.ID), zap.Error(err))
			ch <- Ignored
		}
	}()
	return ch
}

func askHuh(ctx context.Context, p Prompt) (bool, error) {
	action := p.Action
	if action == "" {
		action = "Confirm"
	}

	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(p.Title).
			Description(p.Message).
			Affirmative(action).
			Negative("Ignore").
			Value(&ok),
	))
	if err := form.RunWithContext(ctx); err != nil {
		return false, err
	}
	return ok, nil
}
