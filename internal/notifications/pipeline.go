package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/albapepper/rocketpush/internal/schedule"
	"github.com/albapepper/rocketpush/internal/store"
)

// ScheduleSource fetches the current broadcast schedule.
type ScheduleSource interface {
	Fetch(ctx context.Context) (schedule.Schedule, error)
}

// Pipeline runs check cycles against a schedule source, a store and a
// dispatcher. Safe for concurrent use.
type Pipeline struct {
	source     ScheduleSource
	store      store.Store
	dispatcher *Dispatcher
	opts       Options
	logger     *slog.Logger
	now        func() time.Time

	mu   sync.RWMutex
	last *CycleResult
}

// NewPipeline wires a pipeline. Zero-valued options fall back to defaults.
func NewPipeline(source ScheduleSource, st store.Store, dispatcher *Dispatcher, opts Options, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		source:     source,
		store:      st,
		dispatcher: dispatcher,
		opts:       opts.withDefaults(),
		logger:     logger,
		now:        time.Now,
	}
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.opts.CallTimeout)
}

// Check runs one full cycle. It never returns an error: every failure is
// logged and recorded in the result, and the cycle continues where it can.
func (p *Pipeline) Check(ctx context.Context) (res CycleResult) {
	start := p.now()
	res.StartedAt = start
	defer func() {
		res.Duration = p.now().Sub(start)
		p.setLast(res)
		p.logger.Info("Check cycle complete", "summary", res.Summary(), "duration", res.Duration)
	}()

	if p.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.CycleTimeout)
		defer cancel()
	}

	// 1. Fetch schedule
	cctx, cancel := p.callContext(ctx)
	sched, err := p.source.Fetch(cctx)
	cancel()
	if err != nil {
		p.logger.Error("Schedule fetch failed", "error", err)
		res.Decision = DecisionFetchFailed
		res.AddError(fmt.Errorf("fetch schedule: %w", err))
		return res
	}
	res.Entries = len(sched.Entries)
	res.Quarantined = len(sched.Quarantined)

	// 2. Sync shows
	synced, err := p.SyncShows(ctx, sched)
	if err != nil {
		res.AddError(fmt.Errorf("sync shows: %w", err))
	}
	res.NewShows = synced.New
	invalid := synced.InvalidTokens

	// 3. Next item + eligibility
	p.notifyNext(ctx, sched, &res, &invalid)

	// 4. Cleanup
	res.InvalidTokens = len(invalid)
	removed, err := p.CleanupTokens(ctx, invalid)
	res.TokensRemoved = removed
	if err != nil {
		res.AddError(fmt.Errorf("cleanup tokens: %w", err))
	}
	return res
}

// notifyNext picks the next item and dispatches its notification when due.
// Rejected tokens are appended to invalid.
func (p *Pipeline) notifyNext(ctx context.Context, sched schedule.Schedule, res *CycleResult, invalid *[]string) {
	now := p.now()
	item, ok := NextItem(sched.Entries, now)
	if !ok {
		p.logger.Info("No upcoming schedule item")
		res.Decision = DecisionNoUpcomingItem
		return
	}
	res.NextItem = &item

	if !WithinWindow(item, now, p.opts.Window) {
		p.logger.Debug("Next item outside window", "show", item.Show, "starts_in", item.Start.Sub(now).Round(time.Second))
		res.Decision = DecisionOutsideWindow
		return
	}

	notify, err := p.ShouldNotify(ctx, item, now)
	if err != nil {
		p.logger.Warn("Sent marker check failed", "entry_id", item.ID, "error", err)
		res.Decision = DecisionMarkerCheckError
		res.AddError(err)
		return
	}
	if !notify {
		p.logger.Debug("Next item already notified", "entry_id", item.ID, "show", item.Show)
		res.Decision = DecisionAlreadyNotified
		return
	}

	kind, label, err := KindFor(item.Type)
	if err != nil {
		p.logger.Error("Skipping notification", "entry_id", item.ID, "show", item.Show, "error", err)
		res.Decision = DecisionUndeterminedType
		res.AddError(err)
		return
	}

	// Marker first: a crash mid-dispatch must not cause a second send.
	cctx, cancel := p.callContext(ctx)
	err = p.store.MarkNotified(cctx, item.ID, item.Show, now)
	cancel()
	if err != nil {
		p.logger.Warn("Sent marker write failed", "entry_id", item.ID, "error", err)
		res.AddError(err)
	}
	res.Decision = DecisionNotified

	tokens, err := p.ResolveTokens(ctx, item.Show, kind)
	if err != nil {
		res.AddError(fmt.Errorf("resolve tokens: %w", err))
	}
	res.TokensTargeted = len(tokens)

	p.logger.Info("Notifying subscribers",
		"entry_id", item.ID, "show", item.Show, "kind", kind, "tokens", len(tokens))

	bad, err := p.dispatcher.Dispatch(ctx, tokens, fmt.Sprintf("%s: %s", label, item.Title), item.Topic, p.opts.BroadcastLink)
	if err != nil {
		res.AddError(fmt.Errorf("dispatch: %w", err))
	}
	*invalid = append(*invalid, bad...)
}

// Preview describes what the next cycle would do without sending anything.
type Preview struct {
	Item            *schedule.Entry `json:"item,omitempty"`
	StartsIn        string          `json:"starts_in,omitempty"`
	WithinWindow    bool            `json:"within_window"`
	AlreadyNotified bool            `json:"already_notified"`
	Kind            store.Kind      `json:"kind,omitempty"`
	WouldNotify     bool            `json:"would_notify"`
	Note            string          `json:"note,omitempty"`
}

// Preview fetches the schedule and evaluates the next item read-only.
func (p *Pipeline) Preview(ctx context.Context) (Preview, error) {
	cctx, cancel := p.callContext(ctx)
	sched, err := p.source.Fetch(cctx)
	cancel()
	if err != nil {
		return Preview{}, fmt.Errorf("fetch schedule: %w", err)
	}

	now := p.now()
	item, ok := NextItem(sched.Entries, now)
	if !ok {
		return Preview{Note: "no upcoming item"}, nil
	}

	pv := Preview{
		Item:         &item,
		StartsIn:     item.Start.Sub(now).Round(time.Second).String(),
		WithinWindow: WithinWindow(item, now, p.opts.Window),
	}

	cctx, cancel = p.callContext(ctx)
	pv.AlreadyNotified, err = p.store.IsNotified(cctx, item.ID)
	cancel()
	if err != nil {
		return pv, fmt.Errorf("check sent marker: %w", err)
	}

	kind, _, err := KindFor(item.Type)
	if err != nil {
		pv.Note = err.Error()
		return pv, nil
	}
	pv.Kind = kind
	pv.WouldNotify = pv.WithinWindow && !pv.AlreadyNotified
	return pv, nil
}

// LastResult returns the most recent cycle result, if any.
func (p *Pipeline) LastResult() (CycleResult, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return CycleResult{}, false
	}
	return *p.last, true
}

func (p *Pipeline) setLast(res CycleResult) {
	p.mu.Lock()
	p.last = &res
	p.mu.Unlock()
}
