package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler runs snapshots on a fixed interval. Deployments that prefer an
// external cron hit the snapshot endpoint instead and never start this.
type Scheduler struct {
	mu       sync.RWMutex
	runner   *Runner
	interval time.Duration
	logger   *slog.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(runner *Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With("component", "snapshot_scheduler"),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("snapshot scheduler started", "interval", s.interval)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.runner.RunAll(ctx); err != nil {
					s.logger.Error("scheduled snapshot run failed", "error", err)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler and waits for the loop to exit.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
