package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drives the periodic timeout check. It runs independently of the
// request path and stops when its context is cancelled.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper builds a sweeper over the manager.
func NewSweeper(manager *Manager, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{manager: manager, interval: interval, logger: logger}
}

// Run loops until ctx is cancelled, applying timeout transitions each tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if err := s.manager.CheckNow(ctx); err != nil {
				s.logger.Error("session sweep failed", slog.Any("error", err))
			}
		}
	}
}
