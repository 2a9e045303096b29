package schedule

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxBodyBytes caps the schedule payload; a week of slots is well below it.
const maxBodyBytes = 8 << 20

// Client fetches the schedule over HTTP with client-side rate limiting.
type Client struct {
	httpClient *http.Client
	url        string
	loc        *time.Location
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewClient creates a schedule client. timeout bounds each request;
// requestsPerMinute <= 0 disables rate limiting.
func NewClient(url string, timeout time.Duration, requestsPerMinute int, loc *time.Location, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if requestsPerMinute > 0 {
		limit = rate.Limit(float64(requestsPerMinute) / 60.0)
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		loc:        loc,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// Fetch downloads and validates the current schedule.
func (c *Client) Fetch(ctx context.Context) (Schedule, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Schedule{}, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Schedule{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Schedule{}, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Schedule{}, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Schedule{}, fmt.Errorf("schedule API returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	s, err := Parse(body, c.loc)
	if err != nil {
		return Schedule{}, err
	}
	for _, q := range s.Quarantined {
		c.logger.Warn("Quarantined schedule entry", "index", q.Index, "reason", q.Reason)
	}
	c.logger.Debug("Schedule fetched",
		"entries", len(s.Entries),
		"quarantined", len(s.Quarantined),
		"duration", time.Since(start).Round(time.Millisecond))
	return s, nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
