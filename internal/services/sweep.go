package services

import (
	"context"
	"fmt"
	"time"

	"github.com/aawaaz/grievance-engine/internal/database"
	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	sweepLockKey = "sla:sweep:lock"
	breachNote   = "SLA deadline exceeded"
)

// Locker grants a lease to at most one sweeper at a time
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// SweepResult summarises one sweep run
type SweepResult struct {
	Breached int  `json:"breached"`
	Awarded  int  `json:"awarded"`
	Batches  int  `json:"batches"`
	Skipped  bool `json:"skipped"`
}

type breachedComplaint struct {
	ComplaintID uuid.UUID
	CitizenID   uuid.UUID
}

// SLAScheduler periodically flags open complaints whose deadline has passed
type SLAScheduler struct {
	db        database.DB
	history   *HistoryService
	hooks     *AwardHooks
	locker    Locker
	lockTTL   time.Duration
	batchSize int
	metrics   *Metrics
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewSLAScheduler creates a sweeper that flags at most batchSize complaints per transaction
func NewSLAScheduler(db database.DB, history *HistoryService, hooks *AwardHooks, batchSize int, metrics *Metrics, logger *zap.SugaredLogger) *SLAScheduler {
	return &SLAScheduler{
		db:        db,
		history:   history,
		hooks:     hooks,
		batchSize: batchSize,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// UseLocker makes each sweep hold a lease for ttl so only one instance runs it
func (s *SLAScheduler) UseLocker(l Locker, ttl time.Duration) {
	s.locker = l
	s.lockTTL = ttl
}

// Start runs a sweep immediately and then every interval until ctx is done
func (s *SLAScheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.run(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SLA scheduler stopped")
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

func (s *SLAScheduler) run(ctx context.Context) {
	res, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Errorw("SLA sweep failed", "breached", res.Breached, "error", err)
		return
	}
	if res.Breached > 0 {
		s.logger.Infow("SLA sweep complete",
			"breached", res.Breached,
			"awarded", res.Awarded,
			"batches", res.Batches,
		)
	}
}

// Sweep flags every overdue open complaint as BREACHED. Rows are flipped in
// batches, each in its own transaction together with its history entries.
// The breach bonus is paid after commit and only for rows this run flipped,
// so a rerun never pays twice.
func (s *SLAScheduler) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	if s.locker != nil {
		ok, err := s.locker.TryLock(ctx, sweepLockKey, s.lockTTL)
		switch {
		case err != nil:
			s.logger.Warnw("SLA sweep lock unavailable, sweeping anyway", "error", err)
		case !ok:
			res.Skipped = true
			return res, nil
		default:
			defer func() {
				if err := s.locker.Unlock(context.WithoutCancel(ctx), sweepLockKey); err != nil {
					s.logger.Warnw("SLA sweep lock release failed", "error", err)
				}
			}()
		}
	}

	start := time.Now()
	defer func() { s.metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := s.now()
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		flagged, err := s.flagBatch(ctx, now)
		if err != nil {
			return res, err
		}
		res.Batches++
		res.Breached += len(flagged)
		s.metrics.Breaches.Add(float64(len(flagged)))

		for _, b := range flagged {
			awards := s.hooks.Grant(ctx, b.CitizenID, []models.Reason{models.ReasonSLABreach}, b.ComplaintID)
			res.Awarded += len(awards)
		}

		if len(flagged) < s.batchSize {
			return res, nil
		}
	}
}

// flagBatch flips one batch of overdue complaints. SKIP LOCKED lets a
// concurrent sweeper or status update proceed without blocking this one.
func (s *SLAScheduler) flagBatch(ctx context.Context, now time.Time) ([]breachedComplaint, error) {
	var flagged []breachedComplaint
	err := database.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			UPDATE complaints
			SET sla_breached = TRUE, status = 'BREACHED', updated_at = $1
			WHERE id IN (
				SELECT id FROM complaints
				WHERE sla_breached = FALSE
					AND resolved_at IS NULL
					AND status NOT IN ('RESOLVED', 'CLOSED')
					AND sla_deadline < $1
				ORDER BY sla_deadline
				LIMIT $2
				FOR UPDATE SKIP LOCKED
			) AND sla_breached = FALSE
			RETURNING id, citizen_id`,
			now, s.batchSize)
		if err != nil {
			return fmt.Errorf("flag breaches: %w", err)
		}

		ids := make([]uuid.UUID, 0, s.batchSize)
		for rows.Next() {
			var b breachedComplaint
			if err := rows.Scan(&b.ComplaintID, &b.CitizenID); err != nil {
				rows.Close()
				return fmt.Errorf("scan breached complaint: %w", err)
			}
			flagged = append(flagged, b)
			ids = append(ids, b.ComplaintID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("flag breaches: %w", err)
		}

		return s.history.AppendSystem(ctx, tx, ids, models.StatusBreached, breachNote, now)
	})
	if err != nil {
		return nil, err
	}
	return flagged, nil
}
