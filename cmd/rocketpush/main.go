// Command rocketpush polls the broadcast schedule and sends push
// notifications for upcoming shows.
//
// Usage:
//
//	rocketpush serve               # trigger + maintenance + status API
//	rocketpush check               # run one cycle and exit
//	rocketpush next                # show what the next cycle would do
//	rocketpush shows               # list known shows
//	rocketpush migrate             # apply the schema
//	rocketpush purge --older-than 720h

// @title rocketpush status API
// @version 1.0.0
// @description Read-only status of the broadcast notification poller: last cycle, next broadcast and known shows.
// @host localhost:8000
// @BasePath /
// @schemes http https
// @contact.name rocketpush
// @license.name MIT
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/albapepper/rocketpush/internal/config"
	"github.com/albapepper/rocketpush/internal/db"
	"github.com/albapepper/rocketpush/internal/maintenance"
	"github.com/albapepper/rocketpush/internal/notifications"
	"github.com/albapepper/rocketpush/internal/schedule"
	"github.com/albapepper/rocketpush/internal/store"

	_ "github.com/albapepper/rocketpush/docs" // swagger docs
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	root := &cobra.Command{
		Use:           "rocketpush",
		Short:         "Broadcast schedule poller and push notifier",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(checkCmd())
	root.AddCommand(nextCmd())
	root.AddCommand(showsCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(purgeCmd())

	if err := root.Execute(); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// check / next
// --------------------------------------------------------------------------

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a single check cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				if err := cfg.RequireMessaging(); err != nil {
					return err
				}
				p, err := newPipeline(ctx, cfg, st, true)
				if err != nil {
					return err
				}
				res := p.Check(ctx)
				fmt.Println(res.Summary())
				for _, e := range res.Errors {
					logger.Error("cycle error", "error", e)
				}
				return nil
			})
		},
	}
}

func nextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the next schedule item and whether it would be notified",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				p, err := newPipeline(ctx, cfg, st, false)
				if err != nil {
					return err
				}
				pv, err := p.Preview(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(pv)
			})
		},
	}
}

// --------------------------------------------------------------------------
// shows / migrate / purge
// --------------------------------------------------------------------------

func showsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shows",
		Short: "List known shows with subscriber counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				shows, err := st.ListShows(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "LABEL\tLIVE\tPREMIERE\tREPLAY\tCREATED")
				for _, s := range shows {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", s.Label,
						s.Subscribers[store.KindLive], s.Subscribers[store.KindPremiere], s.Subscribers[store.KindReplay],
						s.CreatedAt.Format(time.DateOnly))
				}
				return tw.Flush()
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening a store applies the idempotent schema.
			return run(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				logger.Info("Schema applied", "driver", cfg.StoreDriver)
				return nil
			})
		},
	}
}

func purgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete sent markers older than the retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				retention := cfg.MarkerRetention
				if olderThan > 0 {
					retention = olderThan
				}
				n, err := maintenance.PurgeMarkers(ctx, st, retention, logger)
				if err != nil {
					return err
				}
				fmt.Printf("purged %d markers\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Retention override (default MARKER_RETENTION)")
	return cmd
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// run loads config, opens the store and calls fn with a signal-aware context.
func run(fn func(ctx context.Context, cfg *config.Config, st store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return fn(ctx, cfg, st)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		st, err := store.OpenSQLite(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		logger.Info("Store opened", "driver", cfg.StoreDriver, "path", cfg.DatabaseURL)
		return st, nil
	default:
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
		return &ownedPostgres{Postgres: store.NewPostgres(pool.Pool), pool: pool}, nil
	}
}

// ownedPostgres closes the pool together with the store.
type ownedPostgres struct {
	*store.Postgres
	pool *db.Pool
}

func (o *ownedPostgres) Close() error {
	o.pool.Close()
	return nil
}

// newPipeline wires the schedule client and, when withSender is set, the
// FCM dispatcher.
func newPipeline(ctx context.Context, cfg *config.Config, st store.Store, withSender bool) (*notifications.Pipeline, error) {
	client := schedule.NewClient(cfg.ScheduleURL, cfg.CallTimeout, cfg.ScheduleRatePerMinute, cfg.Location(), logger)

	var dispatcher *notifications.Dispatcher
	if withSender {
		sender, err := notifications.NewFCMSender(ctx, cfg.FirebaseProjectID, cfg.FirebaseClientEmail, cfg.FirebasePrivateKey, logger)
		if err != nil {
			return nil, err
		}
		dispatcher = notifications.NewDispatcher(sender, cfg.IconURL, cfg.CallTimeout, logger)
	}

	return notifications.NewPipeline(client, st, dispatcher, notifications.Options{
		Window:        cfg.NotifyWindow,
		FanOutLimit:   cfg.FanOutLimit,
		CallTimeout:   cfg.CallTimeout,
		CycleTimeout:  cfg.CycleTimeout,
		SiteURL:       cfg.SiteURL,
		BroadcastLink: cfg.BroadcastLink,
	}, logger), nil
}

func setLogLevel(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
}
