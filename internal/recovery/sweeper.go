package recovery

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper runs the recovery sweep on a cron schedule.
type Sweeper struct {
	cron    *cron.Cron
	manager *Manager
	logger  *zap.Logger
}

// NewSweeper creates a sweeper from a cron spec such as "@hourly".
func NewSweeper(manager *Manager, schedule string, logger *zap.Logger) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(),
		manager: manager,
		logger:  logger,
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins scheduling. Non-blocking.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := s.manager.Sweep(ctx)
	if err != nil {
		s.logger.Error("scheduled sweep failed", zap.Error(err))
		return
	}
	if !report.Clean() || report.PurgedPoints > 0 {
		s.logger.Info("scheduled sweep completed",
			zap.Int64("repaired", report.Repaired),
			zap.Int64("purged_points", report.PurgedPoints))
	}
}
