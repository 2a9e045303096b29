package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/albapepper/rocketpush/internal/schedule"
)

// ShowSyncResult reports what SyncShows found and did.
type ShowSyncResult struct {
	Checked       int      `json:"checked"`
	New           []string `json:"new"`
	Inserted      int      `json:"inserted"`
	Prompted      int      `json:"prompted"`
	InvalidTokens []string `json:"-"`
}

// SyncShows checks every distinct show label in sched against the store.
// For each unknown label it inserts the show and, independently, prompts
// users who opted into new-show alerts.
//
// A label whose existence check fails is skipped this cycle. Tokens rejected
// while prompting are returned in InvalidTokens for cleanup.
func (p *Pipeline) SyncShows(ctx context.Context, sched schedule.Schedule) (ShowSyncResult, error) {
	labels := sched.Shows()
	res := ShowSyncResult{Checked: len(labels)}
	if len(labels) == 0 {
		return res, nil
	}

	exists := make([]bool, len(labels))
	errs := make([]error, len(labels))

	var g errgroup.Group
	g.SetLimit(p.opts.FanOutLimit)
	for i, label := range labels {
		g.Go(func() error {
			cctx, cancel := p.callContext(ctx)
			defer cancel()

			ok, err := p.store.ShowExists(cctx, label)
			if err != nil {
				p.logger.Warn("Show lookup failed", "show", label, "error", err)
				errs[i] = fmt.Errorf("show exists %q: %w", label, err)
				exists[i] = true
				return nil
			}
			exists[i] = ok
			return nil
		})
	}
	_ = g.Wait()

	for i, label := range labels {
		if !exists[i] {
			res.New = append(res.New, label)
		}
	}
	if len(res.New) == 0 {
		return res, errors.Join(errs...)
	}
	p.logger.Info("New shows detected", "count", len(res.New), "shows", res.New)

	var (
		mu       sync.Mutex
		invalid  invalidSet
		failures []error
	)
	record := func(err error) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	}

	var sg errgroup.Group
	sg.SetLimit(p.opts.FanOutLimit)
	for _, label := range res.New {
		sg.Go(func() error {
			cctx, cancel := p.callContext(ctx)
			defer cancel()

			inserted, err := p.store.InsertShow(cctx, label)
			if err != nil {
				p.logger.Warn("Show insert failed", "show", label, "error", err)
				record(err)
				return nil
			}
			if inserted {
				mu.Lock()
				res.Inserted++
				mu.Unlock()
			}
			return nil
		})
		sg.Go(func() error {
			n, bad, err := p.promptNewShow(ctx, label)
			invalid.add(bad...)
			mu.Lock()
			res.Prompted += n
			mu.Unlock()
			if err != nil {
				p.logger.Warn("New show prompt failed", "show", label, "error", err)
				record(err)
			}
			return nil
		})
	}
	_ = sg.Wait()

	res.InvalidTokens = invalid.list()
	return res, errors.Join(append(errs, failures...)...)
}

// promptNewShow notifies new-show subscribers about label and returns the
// number of tokens targeted and those rejected.
func (p *Pipeline) promptNewShow(ctx context.Context, label string) (int, []string, error) {
	cctx, cancel := p.callContext(ctx)
	stored, err := p.store.NewShowSubscriberTokens(cctx)
	cancel()
	if err != nil {
		return 0, nil, fmt.Errorf("new-show subscribers: %w", err)
	}

	tokens := make([]string, 0, len(stored))
	for _, t := range stored {
		tokens = append(tokens, t.Token)
	}
	invalid, err := p.dispatcher.Dispatch(ctx, tokens, fmt.Sprintf(newShowTitle, label), newShowBody, p.opts.SiteURL)
	return len(tokens), invalid, err
}
