// Package scheduler drives periodic detection sweeps over the monitored
// source list.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// SweepFunc runs one detection sweep and reports how many changes it found.
type SweepFunc func(ctx context.Context) (int, error)

// Config configures the scheduler.
type Config struct {
	// Interval between sweeps. Default: 6 hours.
	Interval time.Duration
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 6 * time.Hour
	}
}

// Scheduler runs sweeps on a ticker.
type Scheduler struct {
	sweep  SweepFunc
	config Config
	logger *slog.Logger
}

// New creates a Scheduler.
func New(sweep SweepFunc, cfg Config, logger *slog.Logger) *Scheduler {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sweep:  sweep,
		config: cfg,
		logger: logger.With("component", "scheduler"),
	}
}

// Run sweeps on a ticker. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run once immediately on start.
	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

// runOnce executes a single sweep. Sweep errors are logged, never fatal;
// the next tick tries again.
func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	found, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Info("sweep complete", "changes_found", found, "duration", time.Since(start))
}
