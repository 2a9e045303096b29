package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/albapepper/rocketpush/internal/store"
)

// PurgeMarkers deletes sent markers older than retention. Markers only guard
// items inside the notification window, so old ones are dead weight.
// Also used by the CLI for a one-shot purge.
func PurgeMarkers(ctx context.Context, st store.Store, retention time.Duration, logger *slog.Logger) (int64, error) {
	start := time.Now()
	cutoff := start.Add(-retention)

	n, err := st.PurgeMarkers(ctx, cutoff)
	dur := time.Since(start).Round(time.Millisecond)
	if err != nil {
		logger.Warn("Cleanup: failed to purge sent markers", "duration", dur, "error", err)
		return 0, fmt.Errorf("purge markers: %w", err)
	}
	if n > 0 {
		logger.Info("Cleanup: purged sent markers", "count", n, "cutoff", cutoff, "duration", dur)
	}
	return n, nil
}
