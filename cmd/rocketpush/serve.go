package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/albapepper/rocketpush/internal/api"
	"github.com/albapepper/rocketpush/internal/cache"
	"github.com/albapepper/rocketpush/internal/config"
	"github.com/albapepper/rocketpush/internal/listener"
	"github.com/albapepper/rocketpush/internal/maintenance"
	"github.com/albapepper/rocketpush/internal/store"
	"github.com/albapepper/rocketpush/internal/trigger"
)

func serveCmd() *cobra.Command {
	var noAPI bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the check trigger, maintenance and the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				return serve(ctx, cfg, st, !noAPI)
			})
		},
	}
	cmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not start the status API")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, st store.Store, withAPI bool) error {
	if err := cfg.RequireMessaging(); err != nil {
		return err
	}
	pipeline, err := newPipeline(ctx, cfg, st, true)
	if err != nil {
		return err
	}

	trig, err := trigger.New(trigger.Config{
		Spec:         cfg.CronSpec,
		Location:     cfg.Location(),
		AllowOverlap: cfg.AllowOverlap,
		RunAtStart:   true,
	}, func(ctx context.Context) { pipeline.Check(ctx) }, logger)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		trig.Run(ctx)
		close(done)
	}()

	go maintenance.Start(ctx, st, maintenance.Config{
		CleanupInterval: cfg.CleanupInterval,
		MarkerRetention: cfg.MarkerRetention,
	}, logger)

	appCache := cache.New(cfg.CacheEnabled && withAPI)

	// LISTEN/NOTIFY only exists on Postgres.
	if cfg.StoreDriver == config.DriverPostgres {
		go listener.Start(ctx, cfg.DatabaseURL, listener.Handlers{
			OnCheck:        trig.Fire,
			OnShowsChanged: func() { appCache.Invalidate(cache.KeyShows) },
		}, logger)
	}

	if withAPI {
		logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

		srv := &http.Server{
			Addr:         cfg.APIAddr(),
			Handler:      api.NewRouter(st, pipeline, appCache, cfg, logger),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info("Starting status API",
				"addr", srv.Addr,
				"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Shutdown error", "error", err)
			}
			logger.Info("Server stopped")
		}()
	}

	<-ctx.Done()
	logger.Info("Shutting down...")
	<-done
	return nil
}
