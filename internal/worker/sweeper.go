package worker

import (
	"context"
	"sync"
	"time"

	"freshmart/internal/service"

	"go.uber.org/zap"
)

// Sweeper is the timer-driven loop that reclaims holds abandoned
// without further user action (closed tab, crash). Each pass is a
// condition-guarded bulk update, so multiple instances can run the
// same cadence without double-counting.
type Sweeper struct {
	reservations service.ReservationService
	interval     time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	lastRun time.Time
}

// NewSweeper creates a new Sweeper. The interval should be at or below
// a third of the shortest reservation TTL.
func NewSweeper(reservations service.ReservationService, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		reservations: reservations,
		interval:     interval,
		logger:       logger,
	}
}

// Run sweeps on a fixed cadence until the context is cancelled. It
// performs one pass immediately so a restart does not leave stale
// holds sitting a full interval.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Reservation sweeper started", zap.Duration("interval", s.interval))

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reservation sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// LastRun reports when the last pass completed, for health reporting.
func (s *Sweeper) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Sweeper) sweep(ctx context.Context) {
	now := time.Now()

	if _, err := s.reservations.SweepExpired(ctx, now); err != nil {
		s.logger.Error("Sweep pass failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.lastRun = now
	s.mu.Unlock()
}
