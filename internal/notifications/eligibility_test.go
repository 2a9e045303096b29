package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/albapepper/rocketpush/internal/schedule"
	"github.com/albapepper/rocketpush/internal/store"
)

var base = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)

func entryAt(id string, offset time.Duration) schedule.Entry {
	return schedule.Entry{ID: id, Show: "Show " + id, Title: "T" + id, Start: base.Add(offset)}
}

func TestNextItem(t *testing.T) {
	tests := []struct {
		name    string
		entries []schedule.Entry
		wantID  string
		wantOK  bool
	}{
		{"empty", nil, "", false},
		{"all past", []schedule.Entry{entryAt("1", -time.Hour), entryAt("2", -time.Minute)}, "", false},
		{"starting now is not next", []schedule.Entry{entryAt("1", 0), entryAt("2", time.Minute)}, "2", true},
		{"first future in schedule order", []schedule.Entry{entryAt("1", -time.Hour), entryAt("2", 2*time.Hour), entryAt("3", time.Hour)}, "2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextItem(tt.entries, base)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Fatalf("NextItem = (%q, %t), want (%q, %t)", got.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestWithinWindow(t *testing.T) {
	tests := []struct {
		offset time.Duration
		want   bool
	}{
		{time.Minute, true},
		{9*time.Minute + 59*time.Second, true},
		{10 * time.Minute, false},
		{11 * time.Minute, false},
	}
	for _, tt := range tests {
		if got := WithinWindow(entryAt("x", tt.offset), base, 10*time.Minute); got != tt.want {
			t.Errorf("WithinWindow(+%s) = %t, want %t", tt.offset, got, tt.want)
		}
	}
}

func TestShouldNotify(t *testing.T) {
	st := newMemStore()
	p := newTestPipeline(fixedSource{}, st, &fakeGateway{}, base)
	ctx := context.Background()
	item := entryAt("42", 5*time.Minute)

	ok, err := p.ShouldNotify(ctx, item, base)
	if err != nil || !ok {
		t.Fatalf("fresh item: ok=%t err=%v", ok, err)
	}

	st.markers["42"] = base
	if ok, _ := p.ShouldNotify(ctx, item, base); ok {
		t.Fatal("marked item should not notify")
	}

	if ok, _ := p.ShouldNotify(ctx, entryAt("43", time.Hour), base); ok {
		t.Fatal("item outside window should not notify")
	}

	st.failMarker = true
	ok, err = p.ShouldNotify(ctx, entryAt("44", time.Minute), base)
	if ok || !errors.Is(err, errBoom) {
		t.Fatalf("marker failure: ok=%t err=%v", ok, err)
	}
}

func TestKindFor(t *testing.T) {
	tests := []struct {
		in        string
		wantKind  store.Kind
		wantLabel string
	}{
		{schedule.TypeLive, store.KindLive, "Live"},
		{schedule.TypePremiere, store.KindPremiere, "Premiere"},
		{schedule.TypeReplay, store.KindReplay, "Wiederholung"},
	}
	for _, tt := range tests {
		kind, label, err := KindFor(tt.in)
		if err != nil || kind != tt.wantKind || label != tt.wantLabel {
			t.Errorf("KindFor(%q) = (%q, %q, %v)", tt.in, kind, label, err)
		}
	}

	for _, in := range []string{"rerun", schedule.TypeMissing} {
		if _, _, err := KindFor(in); !errors.Is(err, ErrUndeterminedType) {
			t.Fatalf("KindFor(%q) err = %v, want ErrUndeterminedType", in, err)
		}
	}
}
