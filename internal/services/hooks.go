package services

import (
	"context"
	"errors"
	"time"

	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubmissionReasons lists the awards earned by a citizen's complaintCount-th
// complaint. The count includes the complaint that triggered the award.
func SubmissionReasons(complaintCount int, hasPhoto bool) []models.Reason {
	reasons := []models.Reason{models.ReasonComplaintSubmitted}
	if hasPhoto {
		reasons = append(reasons, models.ReasonPhotoEvidence)
	}
	switch complaintCount {
	case 1:
		reasons = append(reasons, models.ReasonFirstComplaint)
	case 10:
		reasons = append(reasons, models.ReasonMilestone10)
	case 25:
		reasons = append(reasons, models.ReasonMilestone25)
	}
	return reasons
}

// ResolutionReasons lists the awards earned when a complaint reaches a
// terminal status at resolvedAt.
func ResolutionReasons(resolvedAt, deadline time.Time) []models.Reason {
	reasons := []models.Reason{models.ReasonComplaintResolved}
	if !resolvedAt.After(deadline) {
		reasons = append(reasons, models.ReasonSLAMet)
	}
	return reasons
}

// AwardHooks runs the ledger and badge side effects that follow a committed
// complaint event. Every award is its own transaction; a failure is logged
// and never surfaces to the primary operation.
type AwardHooks struct {
	ledger  *Ledger
	badges  *BadgeEngine
	retry   failsafe.Executor[*models.CoinTransaction]
	metrics *Metrics
	logger  *zap.SugaredLogger
}

// NewAwardHooks creates hooks that retry transient ledger failures a few times
func NewAwardHooks(ledger *Ledger, badges *BadgeEngine, metrics *Metrics, logger *zap.SugaredLogger) *AwardHooks {
	policy := retrypolicy.NewBuilder[*models.CoinTransaction]().
		WithBackoff(50*time.Millisecond, 500*time.Millisecond).
		WithMaxRetries(2).
		WithJitterFactor(0.1).
		HandleIf(func(_ *models.CoinTransaction, err error) bool {
			return err != nil &&
				!errors.Is(err, ErrInvalidAmount) &&
				!errors.Is(err, ErrAlreadyAwarded) &&
				!errors.Is(err, context.Canceled)
		}).
		Build()

	return &AwardHooks{
		ledger:  ledger,
		badges:  badges,
		retry:   failsafe.With[*models.CoinTransaction](policy),
		metrics: metrics,
		logger:  logger,
	}
}

// Grant awards each reason independently and returns the ones that landed
func (h *AwardHooks) Grant(ctx context.Context, userID uuid.UUID, reasons []models.Reason, referenceID uuid.UUID) []models.CoinAward {
	awards := make([]models.CoinAward, 0, len(reasons))
	for _, reason := range reasons {
		if a, ok := h.grantOne(ctx, userID, reason, referenceID); ok {
			awards = append(awards, a)
		}
	}
	return awards
}

func (h *AwardHooks) grantOne(ctx context.Context, userID uuid.UUID, reason models.Reason, referenceID uuid.UUID) (award models.CoinAward, ok bool) {
	amount := RewardSchedule[reason]
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("Award panicked", "user", userID, "reason", reason, "panic", r)
			h.metrics.AwardFailures.WithLabelValues(string(reason)).Inc()
			ok = false
		}
	}()

	ref := referenceID
	txn, err := h.retry.WithContext(ctx).Get(func() (*models.CoinTransaction, error) {
		return h.ledger.Award(ctx, userID, amount, reason, &ref)
	})
	if errors.Is(err, ErrAlreadyAwarded) {
		// An earlier attempt committed even though its commit reported an error.
		h.logger.Infow("Coin award already recorded", "user", userID, "reason", reason, "reference", referenceID)
		return models.CoinAward{Reason: reason, Amount: amount}, true
	}
	if err != nil {
		h.logger.Errorw("Coin award failed",
			"user", userID,
			"reason", reason,
			"reference", referenceID,
			"error", err,
		)
		h.metrics.AwardFailures.WithLabelValues(string(reason)).Inc()
		return models.CoinAward{}, false
	}
	return models.CoinAward{Reason: reason, Amount: amount, TransactionID: &txn.ID}, true
}

// Recheck re-evaluates badges for the user, logging rather than returning errors
func (h *AwardHooks) Recheck(ctx context.Context, userID uuid.UUID) []models.Badge {
	awarded, err := h.badges.Recheck(ctx, userID)
	if err != nil {
		h.logger.Warnw("Badge recheck failed", "user", userID, "error", err)
	}
	return awarded
}
