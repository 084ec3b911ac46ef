package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/aawaaz/grievance-engine/internal/services"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IntegrityHandler handles Merkle tree verification endpoints
type IntegrityHandler struct {
	svc    *services.MerkleService
	logger *zap.SugaredLogger
}

// NewIntegrityHandler creates a new integrity handler
func NewIntegrityHandler(svc *services.MerkleService, logger *zap.SugaredLogger) *IntegrityHandler {
	return &IntegrityHandler{svc: svc, logger: logger}
}

// GetRoot handles GET /api/v1/integrity/root
func (h *IntegrityHandler) GetRoot(w http.ResponseWriter, r *http.Request) {
	root := h.svc.GetRoot()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"root":       root,
		"leaf_count": h.svc.GetLeafCount(),
		"timestamp":  h.svc.GetLastBuildTime(),
	})
}

// GetProof handles GET /api/v1/integrity/proof/{index}
func (h *IntegrityHandler) GetProof(w http.ResponseWriter, r *http.Request) {
	indexStr := chi.URLParam(r, "index")
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid index")
		return
	}

	proof, err := h.svc.GetProof(index)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "Proof not available for index")
		return
	}

	respondJSON(w, http.StatusOK, proof)
}

// Verify handles POST /api/v1/integrity/verify
// Recomputes the root from a submitted proof. A proof against a stale
// root is reported as not current even when it hashes correctly.
func (h *IntegrityHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var proof models.MerkleProof
	if err := json.NewDecoder(r.Body).Decode(&proof); err != nil || proof.LeafHash == "" {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid proof")
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{
		"valid":   services.VerifyProof(&proof),
		"current": proof.Root == h.svc.GetRoot(),
	})
}
