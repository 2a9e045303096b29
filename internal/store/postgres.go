package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/rocketpush/internal/db"
)

// Postgres implements Store on a pgxpool with the prepared statements
// registered by package db.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) FindShow(ctx context.Context, label string) (*Show, error) {
	var s Show
	err := p.pool.QueryRow(ctx, db.StmtFindShowByLabel, label).Scan(&s.ID, &s.Label)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find show %q: %w", label, err)
	}

	rows, err := p.pool.Query(ctx, db.StmtShowSubscriptions, s.ID)
	if err != nil {
		return nil, fmt.Errorf("show subscriptions: %w", err)
	}
	defer rows.Close()

	s.Subscribers = make(map[string]Flags)
	for rows.Next() {
		var (
			userID, kind string
			enabled      bool
		)
		if err := rows.Scan(&userID, &kind, &enabled); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		addFlag(s.Subscribers, userID, Kind(kind), enabled)
	}
	return &s, rows.Err()
}

func (p *Postgres) ShowExists(ctx context.Context, label string) (bool, error) {
	var id, l string
	err := p.pool.QueryRow(ctx, db.StmtFindShowByLabel, label).Scan(&id, &l)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("show exists %q: %w", label, err)
	}
	return true, nil
}

func (p *Postgres) InsertShow(ctx context.Context, label string) (bool, error) {
	tag, err := p.pool.Exec(ctx, db.StmtInsertShow, label)
	if err != nil {
		return false, fmt.Errorf("insert show %q: %w", label, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *Postgres) ListShows(ctx context.Context) ([]ShowSummary, error) {
	rows, err := p.pool.Query(ctx, db.StmtListShows)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []ShowSummary
	for rows.Next() {
		var (
			s                    ShowSummary
			live, premiere, repl int
		)
		if err := rows.Scan(&s.ID, &s.Label, &s.CreatedAt, &live, &premiere, &repl); err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		s.Subscribers = map[Kind]int{KindLive: live, KindPremiere: premiere, KindReplay: repl}
		shows = append(shows, s)
	}
	return shows, rows.Err()
}

func (p *Postgres) UserTokens(ctx context.Context, userID string) ([]UserToken, error) {
	return p.queryTokens(ctx, db.StmtUserTokens, userID)
}

func (p *Postgres) NewShowSubscriberTokens(ctx context.Context) ([]UserToken, error) {
	return p.queryTokens(ctx, db.StmtNewShowTokens)
}

func (p *Postgres) AllUserTokens(ctx context.Context) ([]UserToken, error) {
	return p.queryTokens(ctx, db.StmtAllUserTokens)
}

func (p *Postgres) queryTokens(ctx context.Context, stmt string, args ...any) ([]UserToken, error) {
	rows, err := p.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", stmt, err)
	}
	defer rows.Close()

	var tokens []UserToken
	for rows.Next() {
		var t UserToken
		if err := rows.Scan(&t.UserID, &t.TokenID, &t.Token); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

func (p *Postgres) DeleteUserToken(ctx context.Context, userID, tokenID string) error {
	if _, err := p.pool.Exec(ctx, db.StmtDeleteUserToken, userID, tokenID); err != nil {
		return fmt.Errorf("delete token %s/%s: %w", userID, tokenID, err)
	}
	return nil
}

func (p *Postgres) IsNotified(ctx context.Context, entryID string) (bool, error) {
	var exists bool
	if err := p.pool.QueryRow(ctx, db.StmtIsNotified, entryID).Scan(&exists); err != nil {
		return false, fmt.Errorf("is notified %s: %w", entryID, err)
	}
	return exists, nil
}

func (p *Postgres) MarkNotified(ctx context.Context, entryID, showLabel string, at time.Time) error {
	if _, err := p.pool.Exec(ctx, db.StmtMarkNotified, entryID, showLabel, at.UTC()); err != nil {
		return fmt.Errorf("mark notified %s: %w", entryID, err)
	}
	return nil
}

func (p *Postgres) PurgeMarkers(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, db.StmtPurgeNotifications, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge markers: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	var n int
	return p.pool.QueryRow(ctx, db.StmtHealthCheck).Scan(&n)
}

// Close is a no-op; the pool is owned by the caller.
func (p *Postgres) Close() error { return nil }

// addFlag records one subscription row in a subscriber map.
func addFlag(subs map[string]Flags, userID string, kind Kind, enabled bool) {
	f, ok := subs[userID]
	if !ok {
		f = Flags{}
		subs[userID] = f
	}
	f[kind] = enabled
}
