// Package scheduler fires the dispatch cycle on a recurring trigger:
// either a fixed interval or a 5-field cron expression.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/joebot/greetbot/internal/config"
)

// RunFunc is the callback invoked on each trigger firing.
type RunFunc func(ctx context.Context) error

// checkEvery is how often the cron schedule is polled for due firings.
const checkEvery = 15 * time.Second

// Service drives the recurring trigger. Firings run synchronously in
// the loop; a slow cycle simply delays the next firing rather than
// stacking overlapping runs.
type Service struct {
	cfg config.SchedulerConfig
	run RunFunc
}

// New creates a scheduler service.
func New(cfg config.SchedulerConfig, run RunFunc) *Service {
	return &Service{cfg: cfg, run: run}
}

// Run starts the trigger loop. It blocks until ctx is cancelled. Cycle
// errors are logged and the next scheduled firing retries.
func (s *Service) Run(ctx context.Context) {
	if s.cfg.Cron != "" {
		s.runCron(ctx)
		return
	}

	interval := time.Duration(s.cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	slog.Info("Scheduler started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.fire(ctx)
		}
	}
}

func (s *Service) runCron(ctx context.Context) {
	next := nextCronRun(s.cfg.Cron, "", time.Now().UnixMilli())
	if next == 0 {
		slog.Error("Invalid cron expression, scheduler not running", "expr", s.cfg.Cron)
		return
	}
	slog.Info("Scheduler started", "cron", s.cfg.Cron, "next", time.UnixMilli(next))

	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			now := time.Now().UnixMilli()
			if next > 0 && now >= next {
				s.fire(ctx)
				next = nextCronRun(s.cfg.Cron, "", time.Now().UnixMilli())
			}
		}
	}
}

func (s *Service) fire(ctx context.Context) {
	start := time.Now()
	if err := s.run(ctx); err != nil {
		slog.Error("Dispatch cycle failed", "err", err, "elapsed", time.Since(start))
		return
	}
	slog.Debug("Dispatch cycle finished", "elapsed", time.Since(start))
}
