package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/albapepper/rocketpush/internal/api/respond"
	"github.com/albapepper/rocketpush/internal/cache"
)

// GetStatus reports the most recent check cycle.
// @Summary Last cycle status
// @Description Returns the result of the most recent check cycle and the trigger settings.
// @Tags status
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/status [get]
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"cron_spec":     h.cfg.CronSpec,
		"timezone":      h.cfg.CronTimezone,
		"notify_window": h.cfg.NotifyWindow.String(),
	}
	if last, ok := h.cycles.LastResult(); ok {
		body["last_cycle"] = last
		body["summary"] = last.Summary()
	} else {
		body["last_cycle"] = nil
	}
	respond.WriteJSONObject(w, http.StatusOK, body)
}

// GetNextItem evaluates the next schedule item without sending anything.
// @Summary Next broadcast
// @Description Fetches the schedule and reports the next item, whether it is inside the notification window and whether it was already notified.
// @Tags status
// @Produce json
// @Success 200 {object} notifications.Preview
// @Failure 502 {object} respond.ErrorResponse
// @Router /api/v1/schedule/next [get]
func (h *Handler) GetNextItem(w http.ResponseWriter, r *http.Request) {
	ttl := cache.TTLSchedule
	if h.serveCached(w, r, cache.KeyScheduleNext, ttl) {
		return
	}

	pv, err := h.cycles.Preview(r.Context())
	if err != nil {
		respond.WriteErrorDetail(w, http.StatusBadGateway, "SCHEDULE_UNAVAILABLE", "Schedule could not be evaluated", err.Error())
		return
	}
	h.writeCached(w, cache.KeyScheduleNext, pv, ttl)
}

// ListShows returns every known show with per-kind subscriber counts.
// @Summary List shows
// @Description Returns all shows in the store with subscriber counts per notification kind.
// @Tags shows
// @Produce json
// @Success 200 {array} store.ShowSummary
// @Failure 500 {object} respond.ErrorResponse
// @Router /api/v1/shows [get]
func (h *Handler) ListShows(w http.ResponseWriter, r *http.Request) {
	ttl := cache.TTLShows
	if h.serveCached(w, r, cache.KeyShows, ttl) {
		return
	}

	shows, err := h.store.ListShows(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", "Failed to list shows")
		return
	}
	h.writeCached(w, cache.KeyShows, shows, ttl)
}

func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration) bool {
	data, etag, ok := h.cache.Get(key)
	if !ok {
		return false
	}
	if cache.Matches(r.Header.Get("If-None-Match"), etag) {
		respond.WriteNotModified(w, etag)
		return true
	}
	respond.WriteJSON(w, data, etag, ttl, true)
	return true
}

func (h *Handler) writeCached(w http.ResponseWriter, key string, v any, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_ERROR", "Failed to encode response")
		return
	}
	etag := h.cache.Set(key, data, ttl)
	respond.WriteJSON(w, data, etag, ttl, false)
}
