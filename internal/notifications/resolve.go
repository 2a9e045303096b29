package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/albapepper/rocketpush/internal/store"
)

// ResolveTokens returns the delivery tokens of every user subscribed to
// showLabel for kind. An unknown show yields no tokens and no error.
//
// Per-user lookups run concurrently. A failed lookup contributes nothing;
// its error is joined into the returned error alongside the partial tokens.
func (p *Pipeline) ResolveTokens(ctx context.Context, showLabel string, kind store.Kind) ([]string, error) {
	cctx, cancel := p.callContext(ctx)
	show, err := p.store.FindShow(cctx, showLabel)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("find show: %w", err)
	}
	if show == nil {
		p.logger.Debug("Show not found, no recipients", "show", showLabel)
		return nil, nil
	}

	userIDs := subscribersFor(show, kind)
	p.logger.Debug("Resolved subscribers", "show", showLabel, "kind", kind, "users", len(userIDs))

	perUser := make([][]string, len(userIDs))
	errs := make([]error, len(userIDs))

	var g errgroup.Group
	g.SetLimit(p.opts.FanOutLimit)
	for i, userID := range userIDs {
		g.Go(func() error {
			cctx, cancel := p.callContext(ctx)
			defer cancel()

			tokens, err := p.store.UserTokens(cctx, userID)
			if err != nil {
				p.logger.Warn("Token lookup failed", "user_id", userID, "error", err)
				errs[i] = fmt.Errorf("tokens for user %s: %w", userID, err)
				return nil
			}
			for _, t := range tokens {
				perUser[i] = append(perUser[i], t.Token)
			}
			return nil
		})
	}
	_ = g.Wait()

	var tokens []string
	for _, t := range perUser {
		tokens = append(tokens, t...)
	}
	return tokens, errors.Join(errs...)
}

// subscribersFor returns the users whose flag for kind is set, sorted.
func subscribersFor(show *store.Show, kind store.Kind) []string {
	var ids []string
	for userID, flags := range show.Subscribers {
		if flags[kind] {
			ids = append(ids, userID)
		}
	}
	sort.Strings(ids)
	return ids
}
