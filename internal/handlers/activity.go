package handlers

import (
	"net/http"

	"github.com/aawaaz/grievance-engine/internal/services"
	"go.uber.org/zap"
)

// ActivityHandler serves the cross-complaint status feed
type ActivityHandler struct {
	svc    *services.HistoryService
	logger *zap.SugaredLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(svc *services.HistoryService, logger *zap.SugaredLogger) *ActivityHandler {
	return &ActivityHandler{svc: svc, logger: logger}
}

// Recent handles GET /api/v1/activity/recent
func (h *ActivityHandler) Recent(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Recent(r.Context(), queryLimit(r, 100))
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch recent activity")
		return
	}

	respondJSON(w, http.StatusOK, entries)
}
