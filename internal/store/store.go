// Package store persists shows, users, delivery tokens and sent markers.
//
// Two backends implement Store: Postgres through pgxpool for production and
// SQLite for single-host deployments and tests. Both share the same
// relational layout (see schema.go).
package store

import (
	"context"
	"errors"
	"time"
)

// Kind is a notification type a user can subscribe to per show.
type Kind string

const (
	KindLive     Kind = "live"
	KindPremiere Kind = "premiere"
	KindReplay   Kind = "replay"
)

// Kinds lists every subscribable kind.
var Kinds = []Kind{KindLive, KindPremiere, KindReplay}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLive, KindPremiere, KindReplay:
		return true
	}
	return false
}

// ErrInvalidKind is returned for kinds outside Kinds.
var ErrInvalidKind = errors.New("invalid notification kind")

// Flags holds a user's per-kind subscription switches for one show.
type Flags map[Kind]bool

// Show is a known show and its subscribers, keyed by user ID.
type Show struct {
	ID          string
	Label       string
	Subscribers map[string]Flags
}

// UserToken is one registered delivery token of a user.
type UserToken struct {
	UserID  string
	TokenID string
	Token   string
}

// ShowSummary is a show with per-kind subscriber counts.
type ShowSummary struct {
	ID          string       `json:"id"`
	Label       string       `json:"label"`
	CreatedAt   time.Time    `json:"created_at"`
	Subscribers map[Kind]int `json:"subscribers"`
}

// Store is the data store used by the notification pipeline.
type Store interface {
	// FindShow returns the show with the exact label, or nil when none exists.
	FindShow(ctx context.Context, label string) (*Show, error)
	// ShowExists reports whether a show with the exact label exists.
	ShowExists(ctx context.Context, label string) (bool, error)
	// InsertShow creates a show; inserted is false when the label already exists.
	InsertShow(ctx context.Context, label string) (inserted bool, err error)
	// ListShows returns all known shows ordered by label.
	ListShows(ctx context.Context) ([]ShowSummary, error)

	// UserTokens returns the tokens registered for a single user.
	UserTokens(ctx context.Context, userID string) ([]UserToken, error)
	// NewShowSubscriberTokens returns the tokens of every user opted into
	// new-show prompts.
	NewShowSubscriberTokens(ctx context.Context) ([]UserToken, error)
	// AllUserTokens returns every stored token ordered by user and token id.
	AllUserTokens(ctx context.Context) ([]UserToken, error)
	// DeleteUserToken removes one token from one user.
	DeleteUserToken(ctx context.Context, userID, tokenID string) error

	// IsNotified reports whether a sent marker exists for the entry.
	IsNotified(ctx context.Context, entryID string) (bool, error)
	// MarkNotified records the sent marker for the entry.
	MarkNotified(ctx context.Context, entryID, showLabel string, at time.Time) error
	// PurgeMarkers deletes sent markers older than the cutoff.
	PurgeMarkers(ctx context.Context, before time.Time) (int64, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}
