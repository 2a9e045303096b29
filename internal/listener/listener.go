// Package listener provides a Postgres LISTEN/NOTIFY consumer for store
// events. It holds a dedicated pgx connection (not from the pool) listening
// on db.EventsChannel.
//
// Events:
//
//	{"event":"check"}          run a check cycle now
//	{"event":"shows_changed"}  fired by triggers on shows and subscriptions
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/rocketpush/internal/db"
)

const (
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Event types carried in the payload.
const (
	EventCheck        = "check"
	EventShowsChanged = "shows_changed"
)

// Event is the JSON payload from pg_notify.
type Event struct {
	Event string `json:"event"`
}

// Handlers react to events. Nil handlers ignore the event.
type Handlers struct {
	OnCheck        func()
	OnShowsChanged func()
}

// Start opens a dedicated connection and listens on the events channel. It
// reconnects automatically on connection loss. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, h Handlers, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, h, logger)
		if ctx.Err() != nil {
			logger.Info("Event listener stopped (context cancelled)")
			return
		}

		logger.Error("Event listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, h Handlers, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+db.EventsChannel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", db.EventsChannel, err)
	}
	logger.Info("Event listener connected", "channel", db.EventsChannel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		handle(notification.Payload, h, logger)
	}
}

// handle decodes one payload and calls the matching handler.
func handle(payload string, h Handlers, logger *slog.Logger) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		logger.Warn("Failed to parse event", "payload", payload, "error", err)
		return
	}

	logger.Debug("Event received", "event", event.Event)
	switch event.Event {
	case EventCheck:
		if h.OnCheck != nil {
			h.OnCheck()
		}
	case EventShowsChanged:
		if h.OnShowsChanged != nil {
			h.OnShowsChanged()
		}
	default:
		logger.Warn("Unknown event", "event", event.Event)
	}
}
