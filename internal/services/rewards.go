package services

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/aawaaz/grievance-engine/internal/database"
	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const couponSuffixBytes = 10

var couponEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewCouponCode returns a partner-prefixed redemption code with 80 bits of
// randomness, e.g. METRO-K3J5QX2M7P4VZ6HA.
func NewCouponCode(partner string) (string, error) {
	buf := make([]byte, couponSuffixBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate coupon code: %w", err)
	}
	return couponPrefix(partner) + "-" + couponEncoding.EncodeToString(buf), nil
}

func couponPrefix(partner string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(partner) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
		if b.Len() == 5 {
			break
		}
	}
	if b.Len() == 0 {
		return "CIVIC"
	}
	return b.String()
}

// RedemptionService exchanges coins for partner rewards
type RedemptionService struct {
	db      database.DB
	ledger  *Ledger
	metrics *Metrics
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewRedemptionService creates a new redemption service
func NewRedemptionService(db database.DB, ledger *Ledger, metrics *Metrics, logger *zap.SugaredLogger) *RedemptionService {
	return &RedemptionService{db: db, ledger: ledger, metrics: metrics, logger: logger, now: time.Now}
}

// Redeem debits the reward's cost, records the redemption and consumes one
// unit of stock in a single transaction. Either all three happen or none do.
func (s *RedemptionService) Redeem(ctx context.Context, userID, rewardID uuid.UUID) (*models.Redemption, error) {
	var red *models.Redemption
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		reward, err := s.lockReward(ctx, tx, rewardID)
		if err != nil {
			return err
		}
		if !reward.Active {
			return ErrRewardInactive
		}
		if reward.Stock == 0 {
			return ErrOutOfStock
		}

		code, err := NewCouponCode(reward.Partner)
		if err != nil {
			return err
		}

		redemptionID := uuid.New()
		txn, err := s.ledger.deductTx(ctx, tx, userID, reward.CoinCost, models.ReasonRedemption, &redemptionID)
		if err != nil {
			return err
		}

		red = &models.Redemption{
			ID:            redemptionID,
			UserID:        userID,
			RewardID:      reward.ID,
			CoinsSpent:    reward.CoinCost,
			Code:          code,
			TransactionID: txn.ID,
			CreatedAt:     s.now(),
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO redemptions (id, user_id, reward_id, coins_spent, code, transaction_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			red.ID, red.UserID, red.RewardID, red.CoinsSpent, red.Code, red.TransactionID, red.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert redemption: %w", err)
		}

		if reward.Stock == models.UnlimitedStock {
			return nil
		}
		tag, err := tx.Exec(ctx, `UPDATE rewards SET stock = stock - 1 WHERE id = $1 AND stock > 0`, reward.ID)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrOutOfStock
		}
		return nil
	})
	if err != nil {
		s.metrics.Redemptions.WithLabelValues(redemptionOutcome(err)).Inc()
		return nil, err
	}

	s.metrics.Redemptions.WithLabelValues("ok").Inc()
	s.metrics.CoinsDeducted.WithLabelValues(string(models.ReasonRedemption)).Add(float64(red.CoinsSpent))
	s.logger.Infow("Reward redeemed",
		"user", userID,
		"reward", rewardID,
		"coins", red.CoinsSpent,
	)
	return red, nil
}

func redemptionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrRewardInactive):
		return "inactive"
	case errors.Is(err, ErrRewardNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (s *RedemptionService) lockReward(ctx context.Context, tx pgx.Tx, rewardID uuid.UUID) (*models.Reward, error) {
	var r models.Reward
	err := tx.QueryRow(ctx,
		`SELECT id, partner, name, category, coin_cost, stock, active, created_at FROM rewards WHERE id = $1 FOR UPDATE`,
		rewardID,
	).Scan(&r.ID, &r.Partner, &r.Name, &r.Category, &r.CoinCost, &r.Stock, &r.Active, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRewardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock reward: %w", err)
	}
	return &r, nil
}

// ListRewards returns the active catalog, cheapest first. Sold-out entries
// are included so clients can show them as unavailable.
func (s *RedemptionService) ListRewards(ctx context.Context, category string) ([]models.Reward, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, partner, name, category, coin_cost, stock, active, created_at
		FROM rewards
		WHERE active = TRUE AND ($1 = '' OR category = $1)
		ORDER BY coin_cost, name`,
		category)
	if err != nil {
		return nil, fmt.Errorf("query rewards: %w", err)
	}
	defer rows.Close()

	rewards := make([]models.Reward, 0)
	for rows.Next() {
		var r models.Reward
		if err := rows.Scan(&r.ID, &r.Partner, &r.Name, &r.Category, &r.CoinCost, &r.Stock, &r.Active, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

// Redemptions returns a user's redemption history, newest first
func (s *RedemptionService) Redemptions(ctx context.Context, userID uuid.UUID, limit int) ([]models.Redemption, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, reward_id, coins_spent, code, transaction_id, created_at
		FROM redemptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query redemptions: %w", err)
	}
	defer rows.Close()

	list := make([]models.Redemption, 0)
	for rows.Next() {
		var r models.Redemption
		if err := rows.Scan(&r.ID, &r.UserID, &r.RewardID, &r.CoinsSpent, &r.Code, &r.TransactionID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		list = append(list, r)
	}
	return list, rows.Err()
}
