package notifications

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/albapepper/rocketpush/internal/store"
)

// FindOwners maps each user holding one of the invalid tokens to the id of
// that token. When a user holds several invalid tokens the last one in
// stored order wins; the rest are caught on a later cycle.
func FindOwners(invalid []string, stored []store.UserToken) map[string]string {
	owners := make(map[string]string)
	if len(invalid) == 0 {
		return owners
	}

	bad := make(map[string]struct{}, len(invalid))
	for _, t := range invalid {
		bad[t] = struct{}{}
	}
	for _, t := range stored {
		if _, ok := bad[t.Token]; ok {
			owners[t.UserID] = t.TokenID
		}
	}
	return owners
}

// RemoveOwners deletes one token entry per user. Deletions run concurrently;
// a failed deletion does not stop the others.
func (p *Pipeline) RemoveOwners(ctx context.Context, owners map[string]string) (int, error) {
	if len(owners) == 0 {
		return 0, nil
	}

	userIDs := make([]string, 0, len(owners))
	for userID := range owners {
		userIDs = append(userIDs, userID)
	}
	sort.Strings(userIDs)

	errs := make([]error, len(userIDs))
	var g errgroup.Group
	g.SetLimit(p.opts.FanOutLimit)
	for i, userID := range userIDs {
		tokenID := owners[userID]
		g.Go(func() error {
			cctx, cancel := p.callContext(ctx)
			defer cancel()

			if err := p.store.DeleteUserToken(cctx, userID, tokenID); err != nil {
				p.logger.Warn("Token removal failed", "user_id", userID, "token_id", tokenID, "error", err)
				errs[i] = err
			}
			return nil
		})
	}
	_ = g.Wait()

	removed := 0
	for _, err := range errs {
		if err == nil {
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// CleanupTokens removes the stored entries behind the invalid tokens.
func (p *Pipeline) CleanupTokens(ctx context.Context, invalid []string) (int, error) {
	if len(invalid) == 0 {
		return 0, nil
	}

	cctx, cancel := p.callContext(ctx)
	stored, err := p.store.AllUserTokens(cctx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("load tokens: %w", err)
	}

	owners := FindOwners(invalid, stored)
	removed, err := p.RemoveOwners(ctx, owners)
	p.logger.Info("Invalid tokens cleaned up", "invalid", len(invalid), "owners", len(owners), "removed", removed)
	return removed, err
}
