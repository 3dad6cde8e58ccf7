// Package notify delivers operator-facing notifications for sync outcomes.
package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"db-local-sync/internal/logger"
)

type Level string

const (
	Info     Level = "info"
	Success  Level = "success"
	Warning  Level = "warning"  // recoverable failure, retried next tick
	Critical Level = "critical" // needs an operator
)

type Notification struct {
	Level   Level
	Event   string
	Title   string
	Message string
	Err     error
	Time    time.Time
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Log writes notifications to the process logger.
type Log struct{}

func (Log) Notify(ctx context.Context, n Notification) {
	fields := []zap.Field{
		zap.String("event", n.Event),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	}
	if n.Err != nil {
		fields = append(fields, zap.Error(n.Err))
	}

	switch n.Level {
	case Critical:
		logger.Log.Error("Notification", fields...)
	case Warning:
		logger.Log.Warn("Notification", fields...)
	default:
		logger.Log.Info("Notification", fields...)
	}
}

var (
	labelStyle = map[Level]lipgloss.Style{
		Info:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Success:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		Warning:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")),
		Critical: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("9")),
	}
	dimStyle = lipgloss.NewStyle().Faint(true)
)

// Terminal renders notifications as styled lines on w.
type Terminal struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Notify(ctx context.Context, n Notification) {
	ts := n.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	style, ok := labelStyle[n.Level]
	if !ok {
		style = labelStyle[Info]
	}

	line := fmt.Sprintf("%s %s %s",
		dimStyle.Render(ts.Format("15:04:05")),
		style.Render(fmt.Sprintf("[%s]", n.Level)),
		n.Title,
	)
	if n.Message != "" {
		line += " - " + n.Message
	}
	if n.Err != nil {
		line += "\n    " + dimStyle.Render(n.Err.Error())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}

// Multi fans a notification out to every notifier.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, nt := range m {
		nt.Notify(ctx, n)
	}
}
