package link

import (
	"context"
	"log/slog"
	"time"
)

// Refresher periodically repopulates the cache with the most-visited
// links, replacing the previous snapshot in one atomic swap. When the
// swap fails the previous cache contents stay intact.
type Refresher struct {
	store    Store
	cache    Cache
	topN     int
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher creates a new Refresher. topN is the cache capacity and
// ttl the fixed expiry written on every refreshed entry.
func NewRefresher(store Store, cache Cache, topN int, ttl, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		store:    store,
		cache:    cache,
		topN:     topN,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
	}
}

// Run executes an immediate refresh, then refreshes on every interval
// tick until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("cache refresher started",
		"interval", r.interval,
		"top_n", r.topN,
		"ttl", r.ttl,
	)

	r.Refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("cache refresher stopped")
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh runs a single pass: read the top-N links by visit count and
// swap them in as the new cache snapshot. An empty top-N still clears
// whatever the cache held before.
func (r *Refresher) Refresh(ctx context.Context) {
	top, err := r.store.TopByVisits(ctx, r.topN)
	if err != nil {
		r.logger.Error("cache refresh query failed", "error", err)
		return
	}

	if err := r.cache.ReplaceAll(ctx, top, r.ttl); err != nil {
		r.logger.Error("cache refresh swap failed",
			"links", len(top),
			"error", err,
		)
		return
	}

	r.logger.Info("cache refreshed", "links", len(top))
}
