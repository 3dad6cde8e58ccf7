package sync

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"db-local-sync/internal/logger"
)

// Scheduler fires run once per interval. Ticks that land while a cycle is in
// flight are dropped by the orchestrator, not queued here.
type Scheduler struct {
	interval time.Duration
	run      func()
	cron     *cron.Cron
	entryID  cron.EntryID
}

func NewScheduler(interval time.Duration, run func()) *Scheduler {
	return &Scheduler{
		interval: interval,
		run:      run,
		cron:     cron.New(),
	}
}

// Spec is the cron expression for the interval. cron resolves @every to
// whole seconds, with a one second minimum.
func (s *Scheduler) Spec() string {
	return fmt.Sprintf("@every %s", s.interval)
}

func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", s.interval)
	}

	logger.Log.Info("Starting scheduler", zap.String("interval", s.interval.String()))

	id, err := s.cron.AddFunc(s.Spec(), s.triggerSync)
	if err != nil {
		return fmt.Errorf("failed to schedule sync: %w", err)
	}

	s.entryID = id
	s.cron.Start()
	return nil
}

// Stop halts the timer and waits for a running tick to return.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	logger.Log.Info("Stopped scheduler")
}

// Next is the time of the next tick, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

func (s *Scheduler) triggerSync() {
	logger.Log.Debug("Triggering scheduled sync")
	s.run()
}
