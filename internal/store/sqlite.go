package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"
)

// SQLite implements Store using an embedded SQLite database.
type SQLite struct{ db *sql.DB }

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) FindShow(ctx context.Context, label string) (*Show, error) {
	var show Show
	err := s.db.QueryRowContext(ctx,
		`SELECT id, label FROM shows WHERE label = ? ORDER BY created_at, id LIMIT 1`, label,
	).Scan(&show.ID, &show.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find show %q: %w", label, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, kind, enabled FROM show_subscriptions WHERE show_id = ? ORDER BY user_id, kind`, show.ID)
	if err != nil {
		return nil, fmt.Errorf("show subscriptions: %w", err)
	}
	defer rows.Close()

	show.Subscribers = make(map[string]Flags)
	for rows.Next() {
		var (
			userID, kind string
			enabled      int
		)
		if err := rows.Scan(&userID, &kind, &enabled); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		addFlag(show.Subscribers, userID, Kind(kind), enabled != 0)
	}
	return &show, rows.Err()
}

func (s *SQLite) ShowExists(ctx context.Context, label string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shows WHERE label = ?`, label).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("show exists %q: %w", label, err)
	}
	return n > 0, nil
}

func (s *SQLite) InsertShow(ctx context.Context, label string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO shows (label) VALUES (?) ON CONFLICT (label) DO NOTHING`, label)
	if err != nil {
		return false, fmt.Errorf("insert show %q: %w", label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLite) ListShows(ctx context.Context) ([]ShowSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.label, s.created_at,
		       COALESCE(SUM(CASE WHEN ss.kind = 'live' AND ss.enabled = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN ss.kind = 'premiere' AND ss.enabled = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN ss.kind = 'replay' AND ss.enabled = 1 THEN 1 ELSE 0 END), 0)
		FROM shows s LEFT JOIN show_subscriptions ss ON ss.show_id = s.id
		GROUP BY s.id, s.label, s.created_at
		ORDER BY s.label`)
	if err != nil {
		return nil, fmt.Errorf("list shows: %w", err)
	}
	defer rows.Close()

	var shows []ShowSummary
	for rows.Next() {
		var (
			sum                  ShowSummary
			created              int64
			live, premiere, repl int
		)
		if err := rows.Scan(&sum.ID, &sum.Label, &created, &live, &premiere, &repl); err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		sum.CreatedAt = time.Unix(created, 0).UTC()
		sum.Subscribers = map[Kind]int{KindLive: live, KindPremiere: premiere, KindReplay: repl}
		shows = append(shows, sum)
	}
	return shows, rows.Err()
}

func (s *SQLite) UserTokens(ctx context.Context, userID string) ([]UserToken, error) {
	return s.queryTokens(ctx,
		`SELECT user_id, token_id, token FROM user_tokens WHERE user_id = ? ORDER BY token_id`, userID)
}

func (s *SQLite) NewShowSubscriberTokens(ctx context.Context) ([]UserToken, error) {
	return s.queryTokens(ctx, `
		SELECT t.user_id, t.token_id, t.token
		FROM user_tokens t JOIN users u ON u.id = t.user_id
		WHERE u.notify_new_shows = 1
		ORDER BY t.user_id, t.token_id`)
}

func (s *SQLite) AllUserTokens(ctx context.Context) ([]UserToken, error) {
	return s.queryTokens(ctx, `SELECT user_id, token_id, token FROM user_tokens ORDER BY user_id, token_id`)
}

func (s *SQLite) queryTokens(ctx context.Context, query string, args ...any) ([]UserToken, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
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

func (s *SQLite) DeleteUserToken(ctx context.Context, userID, tokenID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ? AND token_id = ?`, userID, tokenID)
	if err != nil {
		return fmt.Errorf("delete token %s/%s: %w", userID, tokenID, err)
	}
	return nil
}

func (s *SQLite) IsNotified(ctx context.Context, entryID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications_sent WHERE entry_id = ?`, entryID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("is notified %s: %w", entryID, err)
	}
	return n > 0, nil
}

func (s *SQLite) MarkNotified(ctx context.Context, entryID, showLabel string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications_sent (entry_id, show_label, sent_at) VALUES (?, ?, ?) ON CONFLICT (entry_id) DO NOTHING`,
		entryID, showLabel, at.UTC().Unix())
	if err != nil {
		return fmt.Errorf("mark notified %s: %w", entryID, err)
	}
	return nil
}

func (s *SQLite) PurgeMarkers(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM notifications_sent WHERE sent_at < ?`, before.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge markers: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the underlying database resources.
func (s *SQLite) Close() error {
	return s.db.Close()
}
