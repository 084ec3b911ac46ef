package handlers

import (
	"net/http"

	"github.com/aawaaz/grievance-engine/internal/services"
	"go.uber.org/zap"
)

// EconomyHandler serves wallet, reward, badge and profile endpoints
type EconomyHandler struct {
	ledger      *services.Ledger
	redemptions *services.RedemptionService
	badges      *services.BadgeEngine
	profiles    *services.ProfileService
	logger      *zap.SugaredLogger
}

// NewEconomyHandler creates a new economy handler
func NewEconomyHandler(
	ledger *services.Ledger,
	redemptions *services.RedemptionService,
	badges *services.BadgeEngine,
	profiles *services.ProfileService,
	logger *zap.SugaredLogger,
) *EconomyHandler {
	return &EconomyHandler{
		ledger:      ledger,
		redemptions: redemptions,
		badges:      badges,
		profiles:    profiles,
		logger:      logger,
	}
}

// Wallet handles GET /api/v1/wallet
func (h *EconomyHandler) Wallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	wallet, err := h.ledger.Wallet(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch wallet")
		return
	}
	respondJSON(w, http.StatusOK, wallet)
}

// Transactions handles GET /api/v1/wallet/transactions
func (h *EconomyHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	txns, err := h.ledger.Transactions(r.Context(), actor.ID, queryLimit(r, 50))
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch transactions")
		return
	}
	respondJSON(w, http.StatusOK, txns)
}

// Rewards handles GET /api/v1/rewards
func (h *EconomyHandler) Rewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := h.redemptions.ListRewards(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch rewards")
		return
	}
	respondJSON(w, http.StatusOK, rewards)
}

// Redeem handles POST /api/v1/rewards/{id}/redeem
func (h *EconomyHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	rewardID, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	redemption, err := h.redemptions.Redeem(r.Context(), actor.ID, rewardID)
	if err != nil {
		writeServiceError(w, h.logger, err, "redeem reward")
		return
	}
	respondJSON(w, http.StatusCreated, redemption)
}

// Redemptions handles GET /api/v1/redemptions
func (h *EconomyHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	list, err := h.redemptions.Redemptions(r.Context(), actor.ID, queryLimit(r, 50))
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch redemptions")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// Badges handles GET /api/v1/badges
func (h *EconomyHandler) Badges(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	badges, err := h.badges.List(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch badges")
		return
	}
	respondJSON(w, http.StatusOK, badges)
}

// Profile handles GET /api/v1/profile
func (h *EconomyHandler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.Profile(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "fetch profile")
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
