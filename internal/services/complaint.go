// Package services contains business logic layers.
// Services are called by handlers and interact with the database.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aawaaz/grievance-engine/internal/database"
	"github.com/aawaaz/grievance-engine/internal/geo"
	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const complaintColumns = `id, citizen_id, category, description, lat, lng, photo_url, severity,
	priority_score, priority_breakdown, status, department_id, hours_allowed, sla_deadline,
	sla_breached, is_duplicate, resolved_at, assigned_authority_id, created_at, updated_at`

// ComplaintService handles complaint intake, status transitions and reads
type ComplaintService struct {
	db      database.DB
	scorer  *PriorityScorer
	sla     *SLAPolicy
	router  *CategoryRouter
	history *HistoryService
	hooks   *AwardHooks
	metrics *Metrics
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewComplaintService creates a new complaint service
func NewComplaintService(
	db database.DB,
	zones *geo.Index,
	sla *SLAPolicy,
	router *CategoryRouter,
	history *HistoryService,
	hooks *AwardHooks,
	metrics *Metrics,
	logger *zap.SugaredLogger,
) *ComplaintService {
	s := &ComplaintService{
		db:      db,
		sla:     sla,
		router:  router,
		history: history,
		hooks:   hooks,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	s.scorer = NewPriorityScorer(zones, s)
	return s
}

// Submit scores, schedules and stores a new complaint, then pays the
// submission awards. Award failures never fail the submission.
func (s *ComplaintService) Submit(ctx context.Context, citizen models.Actor, req *models.ComplaintSubmission) (*models.SubmissionResult, error) {
	if citizen.Role != models.RoleCitizen {
		return nil, ErrForbidden
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	lat, lng := *req.Latitude, *req.Longitude
	department := s.router.Department(category)

	priority, err := s.scorer.Score(ctx, req.Severity, lat, lng, category)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sla, err := s.sla.Assign(ctx, category, req.Severity, department, now)
	if err != nil {
		return nil, err
	}

	c := &models.Complaint{
		ID:                uuid.New(),
		CitizenID:         citizen.ID,
		Category:          category,
		Description:       strings.TrimSpace(req.Description),
		Latitude:          lat,
		Longitude:         lng,
		Severity:          req.Severity,
		PriorityScore:     priority.Total,
		PriorityBreakdown: priority.Breakdown,
		Status:            models.StatusSubmitted,
		DepartmentID:      department,
		HoursAllowed:      sla.HoursAllowed,
		SLADeadline:       sla.Deadline,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.PhotoURL != "" {
		photo := req.PhotoURL
		c.PhotoURL = &photo
	}

	var count int
	err = database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		// Serializes one citizen's submissions so each sees a distinct count.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, citizen.ID.String()); err != nil {
			return fmt.Errorf("lock citizen submissions: %w", err)
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO complaints (`+complaintColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
			c.ID, c.CitizenID, c.Category, c.Description, c.Latitude, c.Longitude, c.PhotoURL, string(c.Severity),
			c.PriorityScore, c.PriorityBreakdown, string(c.Status), c.DepartmentID, c.HoursAllowed, c.SLADeadline,
			c.SLABreached, c.IsDuplicate, c.ResolvedAt, c.AssignedAuthorityID, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert complaint: %w", err)
		}
		if _, err := s.history.Append(ctx, tx, c.ID, models.StatusSubmitted, "Complaint submitted", &citizen.ID, now); err != nil {
			return err
		}

		count, err = countForCitizen(ctx, tx, citizen.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ComplaintsFiled.WithLabelValues(string(c.Severity)).Inc()
	s.logger.Infow("Complaint submitted",
		"id", c.ID,
		"category", c.Category,
		"priority", c.PriorityScore,
		"department", c.DepartmentID,
		"deadline", c.SLADeadline,
	)

	return &models.SubmissionResult{
		Complaint:         c,
		PriorityScore:     c.PriorityScore,
		PriorityBreakdown: c.PriorityBreakdown,
		SLADeadline:       c.SLADeadline,
		HoursAllowed:      c.HoursAllowed,
		DepartmentID:      c.DepartmentID,
		CoinsAwarded:      s.hooks.Grant(ctx, citizen.ID, SubmissionReasons(count, c.PhotoURL != nil), c.ID),
		BadgesEarned:      s.hooks.Recheck(ctx, citizen.ID),
	}, nil
}

// UpdateStatus applies an authority transition and appends its history entry
// in one transaction. Terminal transitions pay the citizen's resolution awards.
func (s *ComplaintService) UpdateStatus(ctx context.Context, actor models.Actor, complaintID uuid.UUID, req *models.StatusUpdate) (*models.StatusUpdateResult, error) {
	if actor.Role != models.RoleAuthority && actor.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.DuplicateOf != nil {
		if req.Status != models.StatusClosed {
			return nil, &ValidationError{Field: "duplicate_of", Message: "only allowed when closing"}
		}
		if *req.DuplicateOf == complaintID {
			return nil, &ValidationError{Field: "duplicate_of", Message: "cannot reference itself"}
		}
	}

	var c *models.Complaint
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		c, err = scanComplaint(tx.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1 FOR UPDATE`, complaintID))
		if err != nil {
			return err
		}
		if !c.Status.CanTransitionTo(req.Status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.Status, req.Status)
		}

		note := req.Note
		if req.DuplicateOf != nil {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM complaints WHERE id = $1)`, *req.DuplicateOf).Scan(&exists); err != nil {
				return fmt.Errorf("check duplicate target: %w", err)
			}
			if !exists {
				return ErrComplaintNotFound
			}
			c.IsDuplicate = true
			note = strings.TrimSpace(fmt.Sprintf("Duplicate of %s. %s", *req.DuplicateOf, req.Note))
		}

		now := s.now()
		c.Status = req.Status
		c.UpdatedAt = now
		if req.Status.Terminal() {
			c.ResolvedAt = &now
		}
		switch {
		case req.AssignedAuthorityID != nil:
			c.AssignedAuthorityID = req.AssignedAuthorityID
		case req.Status == models.StatusAssigned && c.AssignedAuthorityID == nil && actor.Role == models.RoleAuthority:
			id := actor.ID
			c.AssignedAuthorityID = &id
		}

		_, err = tx.Exec(ctx,
			`UPDATE complaints SET status = $2, resolved_at = $3, assigned_authority_id = $4, is_duplicate = $5, updated_at = $6 WHERE id = $1`,
			c.ID, string(c.Status), c.ResolvedAt, c.AssignedAuthorityID, c.IsDuplicate, c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update complaint status: %w", err)
		}

		_, err = s.history.Append(ctx, tx, c.ID, c.Status, note, &actor.ID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("Complaint status updated",
		"id", c.ID,
		"status", c.Status,
		"actor", actor.ID,
	)

	result := &models.StatusUpdateResult{Complaint: c}
	if c.Status.Terminal() {
		if !c.IsDuplicate {
			result.CoinsAwarded = s.hooks.Grant(ctx, c.CitizenID, ResolutionReasons(*c.ResolvedAt, c.SLADeadline), c.ID)
		}
		result.BadgesEarned = s.hooks.Recheck(ctx, c.CitizenID)
	}
	return result, nil
}

// Get returns a complaint. Citizens may only read their own.
func (s *ComplaintService) Get(ctx context.Context, actor models.Actor, id uuid.UUID) (*models.Complaint, error) {
	c, err := scanComplaint(s.db.QueryRow(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleCitizen && c.CitizenID != actor.ID {
		return nil, ErrComplaintNotFound
	}
	return c, nil
}

// History returns the status history of a complaint the actor may read
func (s *ComplaintService) History(ctx context.Context, actor models.Actor, id uuid.UUID) ([]models.StatusHistoryEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.history.ForComplaint(ctx, id, 200)
}

// ListByCitizen returns a citizen's complaints, newest first
func (s *ComplaintService) ListByCitizen(ctx context.Context, citizenID uuid.UUID, limit int) ([]models.Complaint, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+complaintColumns+` FROM complaints WHERE citizen_id = $1 ORDER BY created_at DESC LIMIT $2`,
		citizenID, limit)
	if err != nil {
		return nil, fmt.Errorf("query complaints: %w", err)
	}
	defer rows.Close()

	list := make([]models.Complaint, 0)
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *c)
	}
	return list, rows.Err()
}

// SuggestCategory proposes a category and its department for free text
func (s *ComplaintService) SuggestCategory(text string) (category, department string) {
	category = s.router.Suggest(text)
	return category, s.router.Department(category)
}

// CountNearby implements DuplicateCounter over the complaints table
func (s *ComplaintService) CountNearby(ctx context.Context, category string, box BoundingBox, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM complaints
		WHERE category = $1 AND created_at >= $2
			AND lat BETWEEN $3 AND $4 AND lng BETWEEN $5 AND $6`,
		category, since, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng,
	).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func countForCitizen(ctx context.Context, q database.Querier, citizenID uuid.UUID) (int, error) {
	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM complaints WHERE citizen_id = $1`, citizenID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count citizen complaints: %w", err)
	}
	return count, nil
}

// GetTrends returns complaint submission trends over the last N hours
func (s *ComplaintService) GetTrends(ctx context.Context, hours int) ([]models.AnalyticsTrend, error) {
	query := `
		SELECT DATE_TRUNC('hour', created_at)::TEXT AS date, COUNT(*) AS count
		FROM complaints
		WHERE created_at > NOW() - INTERVAL '1 hour' * $1
		GROUP BY DATE_TRUNC('hour', created_at)
		ORDER BY date DESC
	`

	rows, err := s.db.Query(ctx, query, hours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trends := make([]models.AnalyticsTrend, 0)
	for rows.Next() {
		var t models.AnalyticsTrend
		if err := rows.Scan(&t.Date, &t.Count); err != nil {
			return nil, err
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

// GetCategoryDistribution returns complaint categories for analytics charts
func (s *ComplaintService) GetCategoryDistribution(ctx context.Context) ([]models.CategoryDistribution, error) {
	query := `
		SELECT category, COUNT(*) AS count
		FROM complaints
		GROUP BY category
		ORDER BY count DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cats := make([]models.CategoryDistribution, 0)
	for rows.Next() {
		var c models.CategoryDistribution
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// GetDepartmentHeatmap returns department-level load, urgency and breach counts
func (s *ComplaintService) GetDepartmentHeatmap(ctx context.Context) ([]models.DepartmentHeatmap, error) {
	query := `
		SELECT department_id, COUNT(*) AS count,
			COALESCE(AVG(priority_score), 0)::FLOAT8 AS avg_priority,
			COUNT(*) FILTER (WHERE sla_breached) AS breached
		FROM complaints
		GROUP BY department_id
		ORDER BY count DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	depts := make([]models.DepartmentHeatmap, 0)
	for rows.Next() {
		var d models.DepartmentHeatmap
		if err := rows.Scan(&d.Department, &d.Count, &d.AvgPriority, &d.Breached); err != nil {
			return nil, err
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

func scanComplaint(row pgx.Row) (*models.Complaint, error) {
	var c models.Complaint
	var severity, status string
	err := row.Scan(
		&c.ID, &c.CitizenID, &c.Category, &c.Description, &c.Latitude, &c.Longitude, &c.PhotoURL, &severity,
		&c.PriorityScore, &c.PriorityBreakdown, &status, &c.DepartmentID, &c.HoursAllowed, &c.SLADeadline,
		&c.SLABreached, &c.IsDuplicate, &c.ResolvedAt, &c.AssignedAuthorityID, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrComplaintNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan complaint: %w", err)
	}
	c.Severity = models.Severity(severity)
	c.Status = models.Status(status)
	return &c, nil
}
