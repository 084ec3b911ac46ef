package handlers

import (
	"net/http"
	"strconv"

	"github.com/aawaaz/grievance-engine/internal/services"
	"go.uber.org/zap"
)

// LeaderboardHandler serves ranked earnings
type LeaderboardHandler struct {
	svc    *services.LeaderboardService
	logger *zap.SugaredLogger
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(svc *services.LeaderboardService, logger *zap.SugaredLogger) *LeaderboardHandler {
	return &LeaderboardHandler{svc: svc, logger: logger}
}

// Rank handles GET /api/v1/leaderboard?scope=&city=&state=&page=&limit=
func (h *LeaderboardHandler) Rank(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	entries, err := h.svc.Rank(r.Context(), services.LeaderboardQuery{
		Scope: services.Scope(q.Get("scope")),
		City:  q.Get("city"),
		State: q.Get("state"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch leaderboard")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Me handles GET /api/v1/leaderboard/me?scope=
func (h *LeaderboardHandler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	rank, err := h.svc.MyRank(r.Context(), actor.ID, services.Scope(r.URL.Query().Get("scope")))
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch rank")
		return
	}
	respondJSON(w, http.StatusOK, rank)
}
