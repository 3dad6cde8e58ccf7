// Package confirm asks a human to approve a pending destructive action.
//
// A Gate answers asynchronously on a channel. The channel delivers at most
// one Decision, may deliver it arbitrarily late, or never. A closed channel
// without a value counts as Ignored.
package confirm

import (
	"context"
	"time"
)

type Decision int

const (
	Ignored Decision = iota
	Approved
)

func (d Decision) String() string {
	if d == Approved {
		return "approved"
	}
	return "ignored"
}

// Prompt describes the action awaiting approval.
type Prompt struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

type Gate interface {
	Ask(ctx context.Context, p Prompt) <-chan Decision
}

// Auto approves every prompt immediately. Intended for unattended replicas.
type Auto struct{}

func (Auto) Ask(ctx context.Context, p Prompt) <-chan Decision {
	ch := make(chan Decision, 1)
	ch <- Approved
	return ch
}
