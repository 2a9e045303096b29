// Package maintenance runs periodic housekeeping as Go tickers alongside the
// check trigger.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/rocketpush/internal/store"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	CleanupInterval time.Duration // how often sent markers are purged
	MarkerRetention time.Duration // markers older than this are removed
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		CleanupInterval: 30 * time.Minute,
		MarkerRetention: 30 * 24 * time.Hour,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, st store.Store, cfg Config, logger *slog.Logger) {
	if cfg.CleanupInterval <= 0 || cfg.MarkerRetention <= 0 {
		logger.Info("Maintenance disabled")
		return
	}
	logger.Info("Maintenance tickers started",
		"cleanup", cfg.CleanupInterval,
		"retention", cfg.MarkerRetention)

	t := time.NewTicker(cfg.CleanupInterval)
	defer t.Stop()

	runLoop(ctx, t.C, func() {
		_, _ = PurgeMarkers(ctx, st, cfg.MarkerRetention, logger)
	})
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}
