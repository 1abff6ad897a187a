// Package scheduler runs the portal's periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

func New(logger *zap.Logger) *Scheduler {
	logger = logger.Named("scheduler")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))

	return &Scheduler{
		cron:   c,
		logger: logger,
	}
}

// Register adds job under spec. An empty spec leaves the job disabled.
func (s *Scheduler) Register(name, spec string, job func()) error {
	if spec == "" {
		s.logger.Info("job disabled", zap.String("job", name))
		return nil
	}

	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("schedule %s job: %w", name, err)
	}
	s.logger.Info("scheduled job", zap.String("job", name), zap.String("schedule", spec))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
