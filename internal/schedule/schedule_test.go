package schedule

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const samplePayload = `{"schedule":[
	{"id":101,"show":"Almost Daily","title":"Almost Daily #300","topic":"Talk","type":"","timeStart":"2017-05-10T12:00:00+02:00"},
	{"id":"102","show":"Bohn Jour","title":"Bohn Jour","topic":"Morning","type":"live","timeStart":"2017-05-10T13:00:00+02:00"},
	{"id":103,"title":"No show","type":"live","timeStart":"2017-05-10T14:00:00+02:00"},
	{"id":104,"show":"Game Two","type":"premiere","timeStart":"tomorrow"},
	{"show":"No ID","timeStart":"2017-05-10T15:00:00+02:00"},
	{"id":105,"show":"Almost Daily","type":"premiere","timeStart":"2017-05-10T16:00:00"}
]}`

func TestParse(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	s, err := Parse([]byte(samplePayload), berlin)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.Entries) != 3 {
		t.Fatalf("expected 3 valid entries, got %d: %+v", len(s.Entries), s.Entries)
	}
	if len(s.Quarantined) != 3 {
		t.Fatalf("expected 3 quarantined entries, got %d: %+v", len(s.Quarantined), s.Quarantined)
	}

	if s.Entries[0].ID != "101" || s.Entries[0].Type != TypeReplay {
		t.Fatalf("unexpected first entry: %+v", s.Entries[0])
	}
	if s.Entries[1].Type != TypeLive {
		t.Fatalf("expected live type, got %q", s.Entries[1].Type)
	}

	want := time.Date(2017, 5, 10, 16, 0, 0, 0, berlin)
	if !s.Entries[2].Start.Equal(want) {
		t.Fatalf("zone-less timestamp: got %s, want %s", s.Entries[2].Start, want)
	}

	reasons := map[int]string{}
	for _, q := range s.Quarantined {
		reasons[q.Index] = q.Reason
	}
	if reasons[2] != "missing show" || reasons[4] != "missing id" {
		t.Fatalf("unexpected quarantine reasons: %v", reasons)
	}
	if _, ok := reasons[3]; !ok {
		t.Fatalf("expected unparseable timestamp to be quarantined: %v", reasons)
	}
}

func TestParse_MissingType(t *testing.T) {
	body := `{"schedule":[
		{"id":1,"show":"S","timeStart":"2017-05-10T12:00:00Z"},
		{"id":2,"show":"S","type":null,"timeStart":"2017-05-10T13:00:00Z"},
		{"id":3,"show":"S","type":"","timeStart":"2017-05-10T14:00:00Z"}
	]}`
	s, err := Parse([]byte(body), time.UTC)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(s.Entries) != 3 || len(s.Quarantined) != 0 {
		t.Fatalf("entries=%d quarantined=%d", len(s.Entries), len(s.Quarantined))
	}
	for i, want := range []string{TypeMissing, TypeMissing, TypeReplay} {
		if got := s.Entries[i].Type; got != want {
			t.Errorf("entry %d type = %q, want %q", i, got, want)
		}
	}
}

func TestParse_NoSchedule(t *testing.T) {
	for _, body := range []string{`{}`, `{"schedule":{}}`} {
		if _, err := Parse([]byte(body), time.UTC); !errors.Is(err, ErrNoSchedule) {
			t.Fatalf("%s: expected ErrNoSchedule, got %v", body, err)
		}
	}
	if _, err := Parse([]byte(`{"schedule":[`), time.UTC); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestShows_FirstSeenOrder(t *testing.T) {
	s := Schedule{Entries: []Entry{
		{ID: "1", Show: "B"}, {ID: "2", Show: "A"}, {ID: "3", Show: "B"}, {ID: "4", Show: "C"},
	}}
	got := s.Shows()
	want := []string{"B", "A", "C"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(samplePayload))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 0, time.UTC, nil)
	s, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(s.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(s.Entries))
	}
}

func TestClientFetch_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second, 0, time.UTC, nil)
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 502 response")
	}
}

func TestClientFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, 0, time.UTC, nil)
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}
