// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/rocketpush/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New applies the schema on a dedicated connection, then creates and
// validates a connection pool with prepared statements registered.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	if err := Migrate(ctx, cfg.DatabaseURL); err != nil {
		return nil, err
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Migrate applies the idempotent schema.
func Migrate(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, StmtHealthCheck).Scan(&n)
}

// Statement names used by the Postgres store.
const (
	StmtHealthCheck        = "health_check"
	StmtFindShowByLabel    = "find_show_by_label"
	StmtShowSubscriptions  = "show_subscriptions"
	StmtInsertShow         = "insert_show"
	StmtListShows          = "list_shows"
	StmtUserTokens         = "user_tokens"
	StmtNewShowTokens      = "new_show_subscriber_tokens"
	StmtAllUserTokens      = "all_user_tokens"
	StmtDeleteUserToken    = "delete_user_token"
	StmtIsNotified         = "is_notified"
	StmtMarkNotified       = "mark_notified"
	StmtPurgeNotifications = "purge_notifications_sent"
)

// registerPreparedStatements registers all statements the pipeline and the
// status API use.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		StmtHealthCheck: "SELECT 1",

		// Shows
		StmtFindShowByLabel:   "SELECT id, label FROM shows WHERE label = $1 ORDER BY created_at, id LIMIT 1",
		StmtShowSubscriptions: "SELECT user_id, kind, enabled FROM show_subscriptions WHERE show_id = $1 ORDER BY user_id, kind",
		StmtInsertShow:        "INSERT INTO shows (label) VALUES ($1) ON CONFLICT (label) DO NOTHING",
		StmtListShows: `SELECT s.id, s.label, s.created_at,
		       COUNT(*) FILTER (WHERE ss.kind = 'live' AND ss.enabled),
		       COUNT(*) FILTER (WHERE ss.kind = 'premiere' AND ss.enabled),
		       COUNT(*) FILTER (WHERE ss.kind = 'replay' AND ss.enabled)
		FROM shows s LEFT JOIN show_subscriptions ss ON ss.show_id = s.id
		GROUP BY s.id, s.label, s.created_at
		ORDER BY s.label`,

		// Users and tokens
		StmtUserTokens: "SELECT user_id, token_id, token FROM user_tokens WHERE user_id = $1 ORDER BY token_id",
		StmtNewShowTokens: `SELECT t.user_id, t.token_id, t.token
		FROM user_tokens t JOIN users u ON u.id = t.user_id
		WHERE u.notify_new_shows
		ORDER BY t.user_id, t.token_id`,
		StmtAllUserTokens:   "SELECT user_id, token_id, token FROM user_tokens ORDER BY user_id, token_id",
		StmtDeleteUserToken: "DELETE FROM user_tokens WHERE user_id = $1 AND token_id = $2",

		// Sent markers
		StmtIsNotified:         "SELECT EXISTS (SELECT 1 FROM notifications_sent WHERE entry_id = $1)",
		StmtMarkNotified:       "INSERT INTO notifications_sent (entry_id, show_label, sent_at) VALUES ($1, $2, $3) ON CONFLICT (entry_id) DO NOTHING",
		StmtPurgeNotifications: "DELETE FROM notifications_sent WHERE sent_at < $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
