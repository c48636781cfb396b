package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/obeyhq/backend/usecase/lifecycle"
)

// Sweeper runs the overdue sweep on a cron schedule. Read paths already
// sweep inline; the schedule only bounds how stale an idle user's tasks can
// get.
type Sweeper struct {
	svc      *lifecycle.Service
	schedule string
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewSweeper builds a sweeper for the given cron schedule (e.g. "@every 1m").
func NewSweeper(svc *lifecycle.Service, schedule string, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		svc:      svc,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the job and starts the scheduler.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.run); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("overdue sweeper started", zap.String("schedule", s.schedule))
	return nil
}

// Stop halts the scheduler and waits for a running sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.svc.SweepAll(ctx); err != nil {
		s.logger.Error("scheduled overdue sweep failed", zap.Error(err))
	}
}
