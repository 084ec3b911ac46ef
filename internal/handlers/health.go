package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const version = "1.0.0"

var startTime = time.Now()

type pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides health check endpoints
type HealthHandler struct {
	db     pinger
	cache  *redis.Client
	root   func() string
	logger *zap.SugaredLogger
}

// NewHealthHandler creates a new health handler. cache may be nil when
// Redis is not configured.
func NewHealthHandler(db pinger, cache *redis.Client, root func() string, logger *zap.SugaredLogger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, root: root, logger: logger}
}

// Check handles GET /api/v1/health (liveness probe)
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, models.HealthStatus{
		Status:  "ok",
		Version: version,
		Uptime:  time.Since(startTime).String(),
	})
}

// Ready handles GET /api/v1/health/ready (readiness probe).
// An unreachable cache degrades the report but does not fail readiness.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	status := models.HealthStatus{
		Status:   "ready",
		Version:  version,
		Uptime:   time.Since(startTime).String(),
		Database: "connected",
		Cache:    "disabled",
	}
	if h.root != nil {
		status.LedgerRoot = h.root()
	}

	if h.cache != nil {
		status.Cache = "connected"
		if err := h.cache.Ping(r.Context()).Err(); err != nil {
			h.logger.Warnw("Cache ping failed", "error", err)
			status.Cache = "disconnected"
		}
	}

	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Warnw("Database ping failed", "error", err)
		status.Status = "not ready"
		status.Database = "disconnected"
		respondJSON(w, http.StatusServiceUnavailable, status)
		return
	}

	respondJSON(w, http.StatusOK, status)
}
