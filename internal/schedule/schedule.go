// Package schedule fetches and validates the linear broadcast schedule.
//
// The upstream API returns {"schedule": [...]} where each entry carries
// id, show, title, topic, type and timeStart. Entries missing an id, a show
// or a parseable start time are quarantined rather than passed downstream.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Broadcast types as reported by the API. An empty type marks a replay.
// TypeMissing stands in for an absent or null type and maps to no kind.
const (
	TypeLive     = "live"
	TypePremiere = "premiere"
	TypeReplay   = ""
	TypeMissing  = "<missing>"
)

// ErrNoSchedule is returned when the payload has no schedule array.
var ErrNoSchedule = errors.New("response has no schedule array")

// Entry is a single program slot. Never persisted.
type Entry struct {
	ID    string    `json:"id"`
	Show  string    `json:"show"`
	Title string    `json:"title"`
	Topic string    `json:"topic"`
	Type  string    `json:"type"`
	Start time.Time `json:"timeStart"`
}

// Quarantined records an entry that failed validation.
type Quarantined struct {
	Index  int    `json:"index"`
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

// Schedule is the validated result of one fetch, in API order.
type Schedule struct {
	Entries     []Entry       `json:"entries"`
	Quarantined []Quarantined `json:"quarantined,omitempty"`
}

// Shows returns the distinct show labels referenced by the schedule,
// preserving first-seen order.
func (s Schedule) Shows() []string {
	seen := make(map[string]bool, len(s.Entries))
	var shows []string
	for _, e := range s.Entries {
		if seen[e.Show] {
			continue
		}
		seen[e.Show] = true
		shows = append(shows, e.Show)
	}
	return shows
}

// timeLayouts are tried in order; zone-less layouts are read in loc.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses the API's ISO-ish timestamps. Values without an offset
// are interpreted in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Parse validates a raw API payload. Malformed entries are quarantined;
// only a missing or non-array schedule is an error.
func Parse(body []byte, loc *time.Location) (Schedule, error) {
	if !gjson.ValidBytes(body) {
		return Schedule{}, fmt.Errorf("decode schedule: invalid JSON")
	}
	arr := gjson.GetBytes(body, "schedule")
	if !arr.Exists() || !arr.IsArray() {
		return Schedule{}, ErrNoSchedule
	}

	var out Schedule
	idx := 0
	arr.ForEach(func(_, item gjson.Result) bool {
		e, reason := parseEntry(item, loc)
		if reason != "" {
			out.Quarantined = append(out.Quarantined, Quarantined{Index: idx, Raw: item.Raw, Reason: reason})
		} else {
			out.Entries = append(out.Entries, e)
		}
		idx++
		return true
	})
	return out, nil
}

func parseEntry(item gjson.Result, loc *time.Location) (Entry, string) {
	if !item.IsObject() {
		return Entry{}, "entry is not an object"
	}
	id := item.Get("id")
	if !id.Exists() || id.String() == "" {
		return Entry{}, "missing id"
	}
	show := item.Get("show").String()
	if show == "" {
		return Entry{}, "missing show"
	}
	rawStart := item.Get("timeStart").String()
	if rawStart == "" {
		return Entry{}, "missing timeStart"
	}
	start, err := ParseTime(rawStart, loc)
	if err != nil {
		return Entry{}, err.Error()
	}
	return Entry{
		ID:    id.String(),
		Show:  show,
		Title: item.Get("title").String(),
		Topic: item.Get("topic").String(),
		Type:  entryType(item.Get("type")),
		Start: start,
	}, ""
}

// entryType keeps "" for an explicit empty string only, so a missing or
// null type is never read as a replay.
func entryType(v gjson.Result) string {
	if !v.Exists() || v.Type == gjson.Null {
		return TypeMissing
	}
	return v.String()
}
