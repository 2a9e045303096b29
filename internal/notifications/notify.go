// Package notifications decides whether the next broadcast warrants a push,
// resolves subscribed devices and dispatches through FCM.
//
// Pipeline: fetch schedule → sync new shows → pick next item → check window
// and sent marker → resolve tokens → dispatch → remove invalid tokens.
// Every fan-out is bounded by Options.FanOutLimit and every external call by
// Options.CallTimeout. A failing branch is logged and skipped; siblings
// continue and the cycle proceeds with partial results.
package notifications

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/albapepper/rocketpush/internal/schedule"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultWindow      = 10 * time.Minute
	defaultFanOutLimit = 8
	defaultCallTimeout = 15 * time.Second

	// FCM rejects multicast messages with more tokens than this.
	multicastLimit = 500

	newShowTitle = "Neue Show: %s"
	newShowBody  = "Möchtest du sie abonnieren?"
)

// Cycle decisions reported in CycleResult.Decision.
const (
	DecisionFetchFailed      = "fetch_failed"
	DecisionNoUpcomingItem   = "no_upcoming_item"
	DecisionOutsideWindow    = "outside_window"
	DecisionAlreadyNotified  = "already_notified"
	DecisionMarkerCheckError = "marker_check_failed"
	DecisionUndeterminedType = "undetermined_type"
	DecisionNotified         = "notified"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Options tunes the pipeline. Zero values fall back to defaults.
type Options struct {
	Window        time.Duration // notify when the next item starts within this
	FanOutLimit   int           // max concurrent store lookups per fan-out
	CallTimeout   time.Duration // bound on each external call
	CycleTimeout  time.Duration // bound on a whole Check; zero disables
	SiteURL       string        // click-through for new-show prompts
	BroadcastLink string        // click-through for broadcast alerts
}

func (o Options) withDefaults() Options {
	if o.Window <= 0 {
		o.Window = defaultWindow
	}
	if o.FanOutLimit < 1 {
		o.FanOutLimit = defaultFanOutLimit
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = defaultCallTimeout
	}
	return o
}

// CycleResult summarises one Check.
type CycleResult struct {
	StartedAt      time.Time       `json:"started_at"`
	Duration       time.Duration   `json:"duration"`
	Entries        int             `json:"entries"`
	Quarantined    int             `json:"quarantined"`
	NewShows       []string        `json:"new_shows,omitempty"`
	NextItem       *schedule.Entry `json:"next_item,omitempty"`
	Decision       string          `json:"decision"`
	TokensTargeted int             `json:"tokens_targeted"`
	InvalidTokens  int             `json:"invalid_tokens"`
	TokensRemoved  int             `json:"tokens_removed"`
	Errors         []string        `json:"errors,omitempty"`
}

// AddError records an error message.
func (r *CycleResult) AddError(err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, err.Error())
}

// Summary returns a human-readable summary of the cycle.
func (r *CycleResult) Summary() string {
	next := "none"
	if r.NextItem != nil {
		next = fmt.Sprintf("%s (%s)", r.NextItem.Show, r.NextItem.ID)
	}
	return fmt.Sprintf(
		"entries=%d quarantined=%d new_shows=%d next=%s decision=%s targeted=%d invalid=%d removed=%d errors=%d",
		r.Entries, r.Quarantined, len(r.NewShows), next, r.Decision,
		r.TokensTargeted, r.InvalidTokens, r.TokensRemoved, len(r.Errors),
	)
}

// invalidSet collects invalid tokens from concurrent dispatches.
type invalidSet struct {
	mu     sync.Mutex
	tokens []string
}

func (s *invalidSet) add(tokens ...string) {
	s.mu.Lock()
	s.tokens = append(s.tokens, tokens...)
	s.mu.Unlock()
}

func (s *invalidSet) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tokens...)
}

// redact shortens a delivery token for logs.
func redact(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:6] + "…" + token[len(token)-4:]
}
