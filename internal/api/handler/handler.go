// Package handler provides HTTP handlers for the status API.
// Handlers read from the store and the pipeline directly; no service layer.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/albapepper/rocketpush/internal/api/respond"
	"github.com/albapepper/rocketpush/internal/cache"
	"github.com/albapepper/rocketpush/internal/config"
	"github.com/albapepper/rocketpush/internal/notifications"
	"github.com/albapepper/rocketpush/internal/store"
)

// Cycles exposes the pipeline state the API reports on.
type Cycles interface {
	LastResult() (notifications.CycleResult, bool)
	Preview(ctx context.Context) (notifications.Preview, error)
}

// Handler holds shared dependencies for all endpoint handlers.
type Handler struct {
	store  store.Store
	cycles Cycles
	cache  *cache.Cache
	cfg    *config.Config
}

// New creates a Handler with shared dependencies.
func New(st store.Store, cycles Cycles, c *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{store: st, cycles: cycles, cache: c, cfg: cfg}
}

// Root serves API info at /.
// @Summary API root info
// @Description Returns service name, version and status.
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"name":    "rocketpush",
		"version": "1.0.0",
		"status":  "running",
		"docs":    "/docs",
	})
}

// HealthCheck returns basic health status.
// @Summary Health check
// @Description Returns basic health status and timestamp.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckDB verifies store connectivity.
// @Summary Store health check
// @Description Pings the configured store.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health/db [get]
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		respond.WriteJSONObject(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "unhealthy",
			"database":  "disconnected",
			"error":     "Database connection check failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"database":  "connected",
		"driver":    h.cfg.StoreDriver,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheckCache returns cache statistics.
// @Summary Cache health check
// @Description Returns each cached response with its age, remaining TTL and hit count.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health/cache [get]
func (h *Handler) HealthCheckCache(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"cache":     h.cache.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
