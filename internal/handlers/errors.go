package handlers

import (
	"errors"
	"net/http"

	"github.com/aawaaz/grievance-engine/internal/services"
	"go.uber.org/zap"
)

// writeServiceError maps service errors onto HTTP status codes. Anything
// unrecognised is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, logger *zap.SugaredLogger, err error, action string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, "validation_error", verr.Error())
	case errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, services.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", "Not allowed")
	case errors.Is(err, services.ErrComplaintNotFound),
		errors.Is(err, services.ErrRewardNotFound),
		errors.Is(err, services.ErrUserNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, services.ErrInsufficientBalance):
		respondError(w, http.StatusConflict, "insufficient_balance", err.Error())
	case errors.Is(err, services.ErrOutOfStock):
		respondError(w, http.StatusConflict, "out_of_stock", err.Error())
	case errors.Is(err, services.ErrRewardInactive):
		respondError(w, http.StatusConflict, "reward_inactive", err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		respondError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	default:
		logger.Errorw("Request failed", "action", action, "error", err)
		respondError(w, http.StatusInternalServerError, "internal", "Failed to "+action)
	}
}
