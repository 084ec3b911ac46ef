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

// HistoryService records and serves the append-only status history that
// holds authorities accountable for every transition.
type HistoryService struct {
	db     database.Querier
	logger *zap.SugaredLogger
}

// NewHistoryService creates a new status history service
func NewHistoryService(db database.Querier, logger *zap.SugaredLogger) *HistoryService {
	return &HistoryService{db: db, logger: logger}
}

// Append writes one history entry using q, which is normally the transaction
// that changed the complaint's status.
func (s *HistoryService) Append(ctx context.Context, q database.Querier, complaintID uuid.UUID, status models.Status, note string, actorID *uuid.UUID, at time.Time) (*models.StatusHistoryEntry, error) {
	entry := &models.StatusHistoryEntry{
		ID:          uuid.New(),
		ComplaintID: complaintID,
		Status:      status,
		Note:        note,
		ActorID:     actorID,
		CreatedAt:   at,
	}

	_, err := q.Exec(ctx, `
		INSERT INTO complaint_status_history (id, complaint_id, status, note, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ComplaintID, string(entry.Status), entry.Note, entry.ActorID, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert status history: %w", err)
	}
	return entry, nil
}

// AppendSystem writes one system-authored entry per complaint in a single statement
func (s *HistoryService) AppendSystem(ctx context.Context, q database.Querier, complaintIDs []uuid.UUID, status models.Status, note string, at time.Time) error {
	if len(complaintIDs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(complaintIDs))
	for i := range complaintIDs {
		ids[i] = uuid.New()
	}

	_, err := q.Exec(ctx, `
		INSERT INTO complaint_status_history (id, complaint_id, status, note, actor_id, created_at)
		SELECT h.id, h.complaint_id, $3, $4, NULL, $5
		FROM unnest($1::uuid[], $2::uuid[]) AS h(id, complaint_id)`,
		ids, complaintIDs, string(status), note, at,
	)
	if err != nil {
		return fmt.Errorf("insert system status history: %w", err)
	}
	return nil
}

// ForComplaint returns a complaint's history, oldest first
func (s *HistoryService) ForComplaint(ctx context.Context, complaintID uuid.UUID, limit int) ([]models.StatusHistoryEntry, error) {
	return s.fetch(ctx, `
		SELECT id, complaint_id, status, note, actor_id, created_at
		FROM complaint_status_history
		WHERE complaint_id = $1
		ORDER BY created_at ASC, id
		LIMIT $2`, complaintID, limit)
}

// Recent returns the latest transitions across all complaints
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]models.StatusHistoryEntry, error) {
	return s.fetch(ctx, `
		SELECT id, complaint_id, status, note, actor_id, created_at
		FROM complaint_status_history
		ORDER BY created_at DESC, id
		LIMIT $1`, limit)
}

func (s *HistoryService) fetch(ctx context.Context, query string, args ...any) ([]models.StatusHistoryEntry, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	defer rows.Close()

	entries := make([]models.StatusHistoryEntry, 0)
	for rows.Next() {
		var e models.StatusHistoryEntry
		var status string
		if err := rows.Scan(&e.ID, &e.ComplaintID, &status, &e.Note, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		e.Status = models.Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
