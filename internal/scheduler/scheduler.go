package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/river-hud/internal/conditions"
)

// SnapshotBuilder builds a snapshot for every monitored river.
type SnapshotBuilder interface {
	BuildAll(ctx context.Context) ([]conditions.ConditionSnapshot, error)
}

// Scheduler periodically rebuilds every snapshot so the source cache stays
// warm between client requests.
type Scheduler struct {
	scheduler *gocron.Scheduler
	builder   SnapshotBuilder
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. Each run is bounded by timeout.
func New(builder SnapshotBuilder, interval, timeout time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		builder:   builder,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the warm job and starts the underlying scheduler. A
// non-positive interval leaves the warmer disabled.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("cache warmer disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info("cache warmer started", "interval", s.interval.String())
	s.scheduler.StartAsync()
	return nil
}

// RunOnce rebuilds every snapshot once.
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()
	snaps, err := s.builder.BuildAll(ctx)
	if err != nil {
		s.logger.Error("cache warm failed", "error", err)
		return
	}
	s.logger.Debug("cache warm completed",
		"snapshots", len(snaps),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
