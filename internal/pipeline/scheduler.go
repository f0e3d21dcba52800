package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
)

// Cycler runs one cycle. *Pipeline implements it.
type Cycler interface {
	RunCycle(ctx context.Context, trigger string) (*model.Run, error)
}

// Scheduler triggers a cycle on a fixed interval.
type Scheduler struct {
	cycler   Cycler
	interval time.Duration
	onStart  bool
}

// NewScheduler creates a Scheduler. A non-positive interval falls back to
// four hours.
func NewScheduler(c Cycler, cfg config.ScheduleConfig) *Scheduler {
	interval := time.Duration(cfg.IntervalMins) * time.Minute
	if interval <= 0 {
		interval = 4 * time.Hour
	}
	return &Scheduler{cycler: c, interval: interval, onStart: cfg.RunOnStart}
}

// Interval returns the time between cycles.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Run blocks until ctx is cancelled. A tick that lands while a cycle is
// still running is skipped.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "pipeline.scheduler"))
	log.Info("starting scheduler", zap.Duration("interval", s.interval), zap.Bool("run_on_start", s.onStart))

	if s.onStart {
		s.tick(ctx, log)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx, log)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, log *zap.Logger) {
	run, err := s.cycler.RunCycle(ctx, TriggerSchedule)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		log.Info("scheduler: previous cycle still running, skipping tick")
	case err != nil:
		log.Error("scheduler: cycle failed", zap.Error(err))
	case run != nil:
		log.Info("scheduler: cycle finished", zap.String("run_id", run.ID), zap.String("status", string(run.Status)))
	}
}
