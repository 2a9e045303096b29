package maintenance

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/albapepper/rocketpush/internal/store"
)

func TestPurgeMarkers(t *testing.T) {
	ctx := context.Background()
	st, err := store.OpenSQLite(ctx, filepath.Join(t.TempDir(), "m.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer st.Close()

	now := time.Now()
	if err := st.MarkNotified(ctx, "old", "Show", now.Add(-40*24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := st.MarkNotified(ctx, "new", "Show", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n, err := PurgeMarkers(ctx, st, DefaultConfig().MarkerRetention, logger)
	if err != nil || n != 1 {
		t.Fatalf("PurgeMarkers = %d, %v; want 1", n, err)
	}
	if ok, _ := st.IsNotified(ctx, "new"); !ok {
		t.Fatal("recent marker removed")
	}
}

func TestStart_Disabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan struct{})
	go func() {
		Start(context.Background(), nil, Config{}, logger)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start with zero config should return immediately")
	}
}
