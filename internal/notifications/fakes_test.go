package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/albapepper/rocketpush/internal/schedule"
	"github.com/albapepper/rocketpush/internal/store"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory store.Store with failure injection.
type memStore struct {
	mu          sync.Mutex
	shows       map[string]*store.Show
	tokens      []store.UserToken
	newShowUser map[string]bool
	markers     map[string]time.Time
	inserted    []string
	deleted     [][2]string

	failTokensFor map[string]bool
	failExists    map[string]bool
	failMarker    bool
}

func newMemStore() *memStore {
	return &memStore{
		shows:         map[string]*store.Show{},
		newShowUser:   map[string]bool{},
		markers:       map[string]time.Time{},
		failTokensFor: map[string]bool{},
		failExists:    map[string]bool{},
	}
}

func (m *memStore) addShow(label string, subs map[string]store.Flags) {
	m.shows[label] = &store.Show{ID: "id-" + label, Label: label, Subscribers: subs}
}

func (m *memStore) addToken(userID, tokenID, token string) {
	m.tokens = append(m.tokens, store.UserToken{UserID: userID, TokenID: tokenID, Token: token})
}

func (m *memStore) FindShow(_ context.Context, label string) (*store.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shows[label], nil
}

func (m *memStore) ShowExists(_ context.Context, label string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failExists[label] {
		return false, errBoom
	}
	_, ok := m.shows[label]
	return ok, nil
}

func (m *memStore) InsertShow(_ context.Context, label string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shows[label]; ok {
		return false, nil
	}
	m.shows[label] = &store.Show{ID: "id-" + label, Label: label, Subscribers: map[string]store.Flags{}}
	m.inserted = append(m.inserted, label)
	return true, nil
}

func (m *memStore) ListShows(context.Context) ([]store.ShowSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.ShowSummary
	for _, s := range m.shows {
		out = append(out, store.ShowSummary{ID: s.ID, Label: s.Label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (m *memStore) UserTokens(_ context.Context, userID string) ([]store.UserToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTokensFor[userID] {
		return nil, errBoom
	}
	var out []store.UserToken
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) NewShowSubscriberTokens(context.Context) ([]store.UserToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.UserToken
	for _, t := range m.tokens {
		if m.newShowUser[t.UserID] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) AllUserTokens(context.Context) ([]store.UserToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.UserToken(nil), m.tokens...), nil
}

func (m *memStore) DeleteUserToken(_ context.Context, userID, tokenID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, [2]string{userID, tokenID})
	kept := m.tokens[:0]
	for _, t := range m.tokens {
		if t.UserID == userID && t.TokenID == tokenID {
			continue
		}
		kept = append(kept, t)
	}
	m.tokens = kept
	return nil
}

func (m *memStore) IsNotified(_ context.Context, entryID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMarker {
		return false, errBoom
	}
	_, ok := m.markers[entryID]
	return ok, nil
}

func (m *memStore) MarkNotified(_ context.Context, entryID, _ string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[entryID]; !ok {
		m.markers[entryID] = at
	}
	return nil
}

func (m *memStore) PurgeMarkers(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, at := range m.markers {
		if at.Before(before) {
			delete(m.markers, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close() error               { return nil }

// sentCall is one multicast observed by fakeGateway.
type sentCall struct {
	Tokens []string
	Msg    Message
}

// fakeGateway records multicasts. Tokens listed in reject come back as
// Unregistered; a non-nil failWith fails every call.
type fakeGateway struct {
	mu       sync.Mutex
	calls    []sentCall
	reject   map[string]ErrorKind
	failWith error
}

func (g *fakeGateway) SendMulticast(_ context.Context, tokens []string, msg Message) ([]SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, sentCall{Tokens: append([]string(nil), tokens...), Msg: msg})
	if g.failWith != nil {
		return nil, g.failWith
	}
	out := make([]SendResult, len(tokens))
	for i, t := range tokens {
		if k, ok := g.reject[t]; ok {
			out[i] = SendResult{Kind: k, Err: errBoom}
		}
	}
	return out, nil
}

func (g *fakeGateway) sent() []sentCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]sentCall(nil), g.calls...)
}

// fixedSource serves a canned schedule.
type fixedSource struct {
	sched schedule.Schedule
	err   error
}

func (s fixedSource) Fetch(context.Context) (schedule.Schedule, error) {
	return s.sched, s.err
}

func newTestPipeline(src ScheduleSource, st store.Store, gw Gateway, now time.Time) *Pipeline {
	logger := discardLogger()
	p := NewPipeline(src, st, NewDispatcher(gw, "https://example.test/icon.png", time.Second, logger), Options{
		SiteURL:       "https://example.test/",
		BroadcastLink: "https://example.test/live",
	}, logger)
	p.now = func() time.Time { return now }
	return p
}
