package link

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes links whose expiry time has passed from
// the store and the cache. Ticks are independent: a failure is logged
// and the next tick starts clean. Deletions are idempotent, so an
// overlapping tick cannot corrupt anything.
type Sweeper struct {
	store    Store
	service  Service
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(store Store, service Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Run executes an immediate sweep, then sweeps on every interval tick
// until the context is cancelled. An in-flight sweep is allowed to
// finish; only the loop observes cancellation.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("expiry sweeper started", "interval", s.interval)

	s.Sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs a single pass: query expired links and batch-delete them.
// A pass with nothing expired is a no-op.
func (s *Sweeper) Sweep(ctx context.Context) {
	expired, err := s.store.ListExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("expiry sweep query failed", "error", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	if err := s.service.BatchDelete(ctx, expired); err != nil {
		s.logger.Error("expiry sweep delete failed",
			"expired", len(expired),
			"error", err,
		)
		return
	}

	s.logger.Info("expired links removed", "count", len(expired))
}
