package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aawaaz/grievance-engine/internal/database"
	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const streakWindow = 7 * 24 * time.Hour

// Criterion decides whether a user's aggregates qualify for a badge
type Criterion interface {
	Kind() string
	Evaluate(stats models.UserStats) bool
}

// SubmittedCriterion counts non-duplicate complaints
type SubmittedCriterion struct{ Threshold int }

func (c SubmittedCriterion) Kind() string { return "complaints_submitted" }
func (c SubmittedCriterion) Evaluate(s models.UserStats) bool {
	return s.ComplaintsSubmitted >= c.Threshold
}

// ResolvedCriterion counts complaints in RESOLVED or CLOSED
type ResolvedCriterion struct{ Threshold int }

func (c ResolvedCriterion) Kind() string { return "complaints_resolved" }
func (c ResolvedCriterion) Evaluate(s models.UserStats) bool {
	return s.ComplaintsResolved >= c.Threshold
}

// SLAResolvedCriterion counts complaints resolved at or before their deadline
type SLAResolvedCriterion struct{ Threshold int }

func (c SLAResolvedCriterion) Kind() string { return "sla_resolved" }
func (c SLAResolvedCriterion) Evaluate(s models.UserStats) bool {
	return s.SLAResolved >= c.Threshold
}

// TotalCoinsCriterion compares against lifetime earnings, not balance
type TotalCoinsCriterion struct{ Threshold int }

func (c TotalCoinsCriterion) Kind() string { return "total_coins" }
func (c TotalCoinsCriterion) Evaluate(s models.UserStats) bool {
	return s.TotalCoins >= c.Threshold
}

// StreakCriterion counts complaints filed in the trailing seven days
type StreakCriterion struct{ Threshold int }

func (c StreakCriterion) Kind() string { return "streak_7d" }
func (c StreakCriterion) Evaluate(s models.UserStats) bool {
	return s.RecentComplaints >= c.Threshold
}

var criterionKinds = map[string]func(threshold int) Criterion{
	"complaints_submitted": func(t int) Criterion { return SubmittedCriterion{Threshold: t} },
	"complaints_resolved":  func(t int) Criterion { return ResolvedCriterion{Threshold: t} },
	"sla_resolved":         func(t int) Criterion { return SLAResolvedCriterion{Threshold: t} },
	"total_coins":          func(t int) Criterion { return TotalCoinsCriterion{Threshold: t} },
	"streak_7d":            func(t int) Criterion { return StreakCriterion{Threshold: t} },
}

// ParseCriterion builds the criterion for a catalog descriptor
func ParseCriterion(kind string, threshold int) (Criterion, error) {
	build, ok := criterionKinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown badge criterion %q", kind)
	}
	return build(threshold), nil
}

// BadgeEngine awards catalog badges once their criteria are met
type BadgeEngine struct {
	db      database.DB
	logger  *zap.SugaredLogger
	metrics *Metrics
	now     func() time.Time
}

// NewBadgeEngine creates a new badge engine
func NewBadgeEngine(db database.DB, metrics *Metrics, logger *zap.SugaredLogger) *BadgeEngine {
	return &BadgeEngine{db: db, logger: logger, metrics: metrics, now: time.Now}
}

// Recheck evaluates every badge the user has not yet earned and returns the
// ones newly awarded by this call. Concurrent rechecks for the same user
// never double-award: the insert is guarded by the (user_id, badge_id) key.
func (e *BadgeEngine) Recheck(ctx context.Context, userID uuid.UUID) ([]models.Badge, error) {
	pending, err := e.unearned(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	stats, err := e.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}

	var awarded []models.Badge
	for _, b := range pending {
		crit, err := ParseCriterion(b.CriteriaType, b.CriteriaThreshold)
		if err != nil {
			e.logger.Warnw("Skipping badge with unknown criterion", "badge", b.Slug, "error", err)
			continue
		}
		if !crit.Evaluate(stats) {
			continue
		}

		tag, err := e.db.Exec(ctx, `
			INSERT INTO user_badges (user_id, badge_id, awarded_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, badge_id) DO NOTHING`,
			userID, b.ID, e.now())
		if err != nil {
			return awarded, fmt.Errorf("award badge %s: %w", b.Slug, err)
		}
		if tag.RowsAffected() == 1 {
			awarded = append(awarded, b)
			e.metrics.BadgesAwarded.WithLabelValues(b.Slug).Inc()
			e.logger.Infow("Badge awarded", "user", userID, "badge", b.Slug)
		}
	}
	return awarded, nil
}

// Stats computes the aggregates badge criteria evaluate against
func (e *BadgeEngine) Stats(ctx context.Context, userID uuid.UUID) (models.UserStats, error) {
	var s models.UserStats
	err := e.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM complaints WHERE citizen_id = $1 AND is_duplicate = FALSE),
			(SELECT COUNT(*) FROM complaints WHERE citizen_id = $1 AND status IN ('RESOLVED', 'CLOSED')),
			(SELECT COUNT(*) FROM complaints WHERE citizen_id = $1 AND status IN ('RESOLVED', 'CLOSED')
				AND resolved_at IS NOT NULL AND resolved_at <= sla_deadline),
			COALESCE((SELECT total_earned FROM coin_wallets WHERE user_id = $1), 0),
			(SELECT COUNT(*) FROM complaints WHERE citizen_id = $1 AND created_at >= $2)`,
		userID, e.now().Add(-streakWindow),
	).Scan(&s.ComplaintsSubmitted, &s.ComplaintsResolved, &s.SLAResolved, &s.TotalCoins, &s.RecentComplaints)
	if err != nil {
		return s, fmt.Errorf("compute user stats: %w", err)
	}
	return s, nil
}

// List returns the full catalog annotated with the user's awards
func (e *BadgeEngine) List(ctx context.Context, userID uuid.UUID) ([]models.BadgeStatus, error) {
	rows, err := e.db.Query(ctx, `
		SELECT b.id, b.slug, b.name, b.tier, b.criteria_type, b.criteria_threshold, ub.awarded_at
		FROM badges b
		LEFT JOIN user_badges ub ON ub.badge_id = b.id AND ub.user_id = $1
		ORDER BY b.criteria_type, b.criteria_threshold`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query badges: %w", err)
	}
	defer rows.Close()

	list := make([]models.BadgeStatus, 0)
	for rows.Next() {
		var bs models.BadgeStatus
		if err := rows.Scan(&bs.ID, &bs.Slug, &bs.Name, &bs.Tier, &bs.CriteriaType, &bs.CriteriaThreshold, &bs.AwardedAt); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		bs.Earned = bs.AwardedAt != nil
		list = append(list, bs)
	}
	return list, rows.Err()
}

func (e *BadgeEngine) unearned(ctx context.Context, userID uuid.UUID) ([]models.Badge, error) {
	rows, err := e.db.Query(ctx, `
		SELECT b.id, b.slug, b.name, b.tier, b.criteria_type, b.criteria_threshold
		FROM badges b
		WHERE NOT EXISTS (SELECT 1 FROM user_badges ub WHERE ub.badge_id = b.id AND ub.user_id = $1)
		ORDER BY b.criteria_threshold`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("query unearned badges: %w", err)
	}
	defer rows.Close()

	var badges []models.Badge
	for rows.Next() {
		var b models.Badge
		if err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.Tier, &b.CriteriaType, &b.CriteriaThreshold); err != nil {
			return nil, fmt.Errorf("scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	return badges, rows.Err()
}
