package notifications

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/albapepper/rocketpush/internal/schedule"
	"github.com/albapepper/rocketpush/internal/store"
)

// ErrUndeterminedType is returned by KindFor for broadcast types that map to
// no notification kind.
var ErrUndeterminedType = errors.New("broadcast type could not be determined")

// NextItem returns the first entry, in schedule order, that starts strictly
// after now.
func NextItem(entries []schedule.Entry, now time.Time) (schedule.Entry, bool) {
	for _, e := range entries {
		if e.Start.After(now) {
			return e, true
		}
	}
	return schedule.Entry{}, false
}

// WithinWindow reports whether e starts less than window after now.
func WithinWindow(e schedule.Entry, now time.Time, window time.Duration) bool {
	return e.Start.Sub(now) < window
}

// ShouldNotify reports whether e is inside the notification window and has
// no sent marker yet. A failed marker lookup yields false with the error;
// the item is then retried on the next cycle.
func (p *Pipeline) ShouldNotify(ctx context.Context, e schedule.Entry, now time.Time) (bool, error) {
	if !WithinWindow(e, now, p.opts.Window) {
		return false, nil
	}

	cctx, cancel := p.callContext(ctx)
	defer cancel()
	notified, err := p.store.IsNotified(cctx, e.ID)
	if err != nil {
		return false, fmt.Errorf("check sent marker: %w", err)
	}
	return !notified, nil
}

// KindFor maps a broadcast type to the subscription kind and the label used
// in the notification title.
func KindFor(broadcastType string) (store.Kind, string, error) {
	switch broadcastType {
	case schedule.TypeLive:
		return store.KindLive, "Live", nil
	case schedule.TypePremiere:
		return store.KindPremiere, "Premiere", nil
	case schedule.TypeReplay:
		return store.KindReplay, "Wiederholung", nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUndeterminedType, broadcastType)
}
