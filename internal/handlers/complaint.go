// Package handlers contains HTTP request handlers for the grievance engine API.
// Handlers parse requests, call services, and return JSON responses.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aawaaz/grievance-engine/internal/middleware"
	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/aawaaz/grievance-engine/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ComplaintHandler handles complaint-related HTTP endpoints
type ComplaintHandler struct {
	complaintSvc *services.ComplaintService
	logger       *zap.SugaredLogger
}

// NewComplaintHandler creates a new complaint handler
func NewComplaintHandler(cs *services.ComplaintService, logger *zap.SugaredLogger) *ComplaintHandler {
	return &ComplaintHandler{complaintSvc: cs, logger: logger}
}

// Submit handles POST /api/v1/complaints
// Scores the complaint, assigns its deadline and pays intake rewards.
func (h *ComplaintHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req models.ComplaintSubmission
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	result, err := h.complaintSvc.Submit(r.Context(), actor, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "submit complaint")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// Mine handles GET /api/v1/complaints/mine
func (h *ComplaintHandler) Mine(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	complaints, err := h.complaintSvc.ListByCitizen(r.Context(), actor.ID, queryLimit(r, 50))
	if err != nil {
		writeServiceError(w, h.logger, err, "list complaints")
		return
	}
	respondJSON(w, http.StatusOK, complaints)
}

// Get handles GET /api/v1/complaints/{id}
func (h *ComplaintHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	complaint, err := h.complaintSvc.Get(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "get complaint")
		return
	}
	respondJSON(w, http.StatusOK, complaint)
}

// History handles GET /api/v1/complaints/{id}/history
func (h *ComplaintHandler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.complaintSvc.History(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, h.logger, err, "complaint history")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// UpdateStatus handles PUT /api/v1/complaints/{id}/status
func (h *ComplaintHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	var req models.StatusUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}

	result, err := h.complaintSvc.UpdateStatus(r.Context(), actor, id, &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "update status")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// SuggestCategory handles POST /api/v1/complaints/suggest-category
func (h *ComplaintHandler) SuggestCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Description == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "Description required")
		return
	}

	category, department := h.complaintSvc.SuggestCategory(req.Description)
	respondJSON(w, http.StatusOK, map[string]string{
		"category":      category,
		"department_id": department,
	})
}

// Trends handles GET /api/v1/analytics/trends
func (h *ComplaintHandler) Trends(w http.ResponseWriter, r *http.Request) {
	trends, err := h.complaintSvc.GetTrends(r.Context(), queryInt(r, "hours", 72))
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch trends")
		return
	}
	respondJSON(w, http.StatusOK, trends)
}

// Categories handles GET /api/v1/analytics/categories
func (h *ComplaintHandler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.complaintSvc.GetCategoryDistribution(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch categories")
		return
	}
	respondJSON(w, http.StatusOK, cats)
}

// Departments handles GET /api/v1/analytics/departments
func (h *ComplaintHandler) Departments(w http.ResponseWriter, r *http.Request) {
	depts, err := h.complaintSvc.GetDepartmentHeatmap(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch departments")
		return
	}
	respondJSON(w, http.StatusOK, depts)
}

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"error": message, "code": code})
}

func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "Authorization required")
	}
	return actor, ok
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads a positive integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// maxListLimit caps the page size of list endpoints
const maxListLimit = 100

// queryLimit reads the "limit" parameter, capped at maxListLimit
func queryLimit(r *http.Request, def int) int {
	return min(queryInt(r, "limit", def), maxListLimit)
}
