package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aawaaz/grievance-engine/internal/database"
	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

var defaultSLAHours = map[models.Severity]int{
	models.SeverityCritical: 2,
	models.SeverityHigh:     12,
	models.SeverityMedium:   24,
	models.SeverityLow:      48,
}

// DefaultSLAHours is the last-resort allowance keyed by severity alone.
// Unknown severities get the LOW allowance.
func DefaultSLAHours(s models.Severity) int {
	if h, ok := defaultSLAHours[s]; ok {
		return h
	}
	return defaultSLAHours[models.SeverityLow]
}

// SLAPolicy resolves resolution allowances from the sla_rules table
type SLAPolicy struct {
	db     database.Querier
	logger *zap.SugaredLogger
}

// NewSLAPolicy creates a new SLA policy
func NewSLAPolicy(db database.Querier, logger *zap.SugaredLogger) *SLAPolicy {
	return &SLAPolicy{db: db, logger: logger}
}

// HoursAllowed looks up (category, severity, department), then (severity,
// department), then falls back to the built-in severity table.
func (p *SLAPolicy) HoursAllowed(ctx context.Context, category string, severity models.Severity, departmentID string) (int, error) {
	hours, found, err := p.lookup(ctx,
		`SELECT hours_allowed FROM sla_rules WHERE category = $1 AND severity = $2 AND department_id = $3 LIMIT 1`,
		category, string(severity), departmentID)
	if err != nil || found {
		return hours, err
	}

	// Category-agnostic rules win over category-specific ones for other categories.
	hours, found, err = p.lookup(ctx,
		`SELECT hours_allowed FROM sla_rules WHERE severity = $1 AND department_id = $2 ORDER BY (category IS NULL) DESC, id LIMIT 1`,
		string(severity), departmentID)
	if err != nil || found {
		return hours, err
	}

	return DefaultSLAHours(severity), nil
}

// Assign computes the concrete deadline for a complaint submitted at submittedAt
func (p *SLAPolicy) Assign(ctx context.Context, category string, severity models.Severity, departmentID string, submittedAt time.Time) (models.SLAAssignment, error) {
	hours, err := p.HoursAllowed(ctx, category, severity, departmentID)
	if err != nil {
		return models.SLAAssignment{}, err
	}
	return models.SLAAssignment{
		Deadline:     submittedAt.Add(time.Duration(hours) * time.Hour),
		HoursAllowed: hours,
	}, nil
}

func (p *SLAPolicy) lookup(ctx context.Context, query string, args ...any) (int, bool, error) {
	var hours int
	err := p.db.QueryRow(ctx, query, args...).Scan(&hours)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup sla rule: %w", err)
	}
	return hours, true, nil
}
