// Package cache holds rendered API responses for a short TTL and derives
// their ETags.
//
// The key space is fixed (one key per cached endpoint), so expired entries
// are simply overwritten on the next Set and no eviction loop is needed.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Keys and TTLs per endpoint.
const (
	KeyShows        = "shows"
	KeyScheduleNext = "schedule:next"

	TTLShows    = 5 * time.Minute
	TTLSchedule = 30 * time.Second
)

type response struct {
	body     []byte
	etag     string
	storedAt time.Time
	ttl      time.Duration
}

func (r response) fresh(now time.Time) bool {
	return now.Sub(r.storedAt) < r.ttl
}

// Cache stores rendered responses by key. A disabled cache never hits but
// still computes ETags. Safe for concurrent use.
type Cache struct {
	enabled bool
	now     func() time.Time

	mu        sync.RWMutex
	responses map[string]response
	hits      map[string]int
}

// New returns a cache; enabled=false yields one that never stores.
func New(enabled bool) *Cache {
	return &Cache{
		enabled:   enabled,
		now:       time.Now,
		responses: make(map[string]response),
		hits:      make(map[string]int),
	}
}

// Get returns the stored body and ETag for key while it is fresh.
func (c *Cache) Get(key string) ([]byte, string, bool) {
	if !c.enabled {
		return nil, "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.responses[key]
	if !ok || !r.fresh(c.now()) {
		return nil, "", false
	}
	c.hits[key]++
	return r.body, r.etag, true
}

// Set stores body under key for ttl and returns its ETag.
func (c *Cache) Set(key string, body []byte, ttl time.Duration) string {
	etag := ETag(body)
	if !c.enabled {
		return etag
	}
	c.mu.Lock()
	c.responses[key] = response{body: body, etag: etag, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
	return etag
}

// Invalidate drops key so the next request renders it again.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.responses, key)
	c.mu.Unlock()
}

// KeyStats describes one stored response.
type KeyStats struct {
	Fresh     bool   `json:"fresh"`
	Age       string `json:"age"`
	ExpiresIn string `json:"expires_in,omitempty"`
	Hits      int    `json:"hits"`
}

// Stats is the cache state reported by /health/cache.
type Stats struct {
	Enabled bool                `json:"enabled"`
	Keys    map[string]KeyStats `json:"keys"`
}

// Stats reports every stored key with its age and hit count.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	now := c.now()
	out := Stats{Enabled: c.enabled, Keys: make(map[string]KeyStats, len(c.responses))}
	for key, r := range c.responses {
		ks := KeyStats{
			Fresh: r.fresh(now),
			Age:   now.Sub(r.storedAt).Round(time.Second).String(),
			Hits:  c.hits[key],
		}
		if ks.Fresh {
			ks.ExpiresIn = r.storedAt.Add(r.ttl).Sub(now).Round(time.Second).String()
		}
		out.Keys[key] = ks
	}
	return out
}

// ETag returns a weak ETag for body.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:12]) + `"`
}

// Matches reports whether an If-None-Match header value selects etag. The
// header may list several tags; comparison is weak.
func Matches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(ifNoneMatch, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == want {
			return true
		}
	}
	return false
}
