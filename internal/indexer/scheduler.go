package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers bulk passes on a cron schedule.
type Scheduler struct {
	m    *Maintainer
	cron *cron.Cron
}

// NewScheduler registers the maintainer's bulk pass under Config.Schedule.
// Standard five-field specs and descriptors such as "@every 30m" are accepted.
func NewScheduler(ctx context.Context, m *Maintainer) (*Scheduler, error) {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))

	_, err := c.AddFunc(m.cfg.Schedule, func() {
		m.scheduledRun(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid index schedule %q: %w", m.cfg.Schedule, err)
	}
	return &Scheduler{m: m, cron: c}, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.m.logger.Info("index scheduler started", "schedule", s.m.cfg.Schedule)
}

// Stop halts the schedule and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.m.logger.Info("index scheduler stopped")
}

// scheduledRun is a timer trigger: it is dropped when a pass is running.
func (m *Maintainer) scheduledRun(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_, err := m.RunBulk(ctx, false)
	switch {
	case errors.Is(err, ErrIndexingInProgress):
		m.logger.Debug("scheduled bulk pass dropped, indexing in progress")
	case err != nil:
		m.logger.Error("scheduled bulk pass failed", "error", err)
	}
}
