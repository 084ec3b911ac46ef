package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aawaaz/grievance-engine/internal/database"
	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Scope narrows the leaderboard geographically
type Scope string

const (
	ScopeNational Scope = "national"
	ScopeState    Scope = "state"
	ScopeCity     Scope = "city"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// LeaderboardQuery selects one page of a scoped leaderboard
type LeaderboardQuery struct {
	Scope Scope
	City  string
	State string
	Page  int
	Limit int
}

// Normalize clamps paging and drops filters the scope does not use
func (q LeaderboardQuery) Normalize() (LeaderboardQuery, error) {
	if q.Scope == "" {
		q.Scope = ScopeNational
	}
	q.City = strings.TrimSpace(q.City)
	q.State = strings.TrimSpace(q.State)

	switch q.Scope {
	case ScopeNational:
		q.City, q.State = "", ""
	case ScopeState:
		q.City = ""
		if q.State == "" {
			return q, &ValidationError{Field: "state", Message: "required for state scope"}
		}
	case ScopeCity:
		if q.City == "" {
			return q, &ValidationError{Field: "city", Message: "required for city scope"}
		}
	default:
		return q, &ValidationError{Field: "scope", Message: fmt.Sprintf("unknown scope %q", q.Scope)}
	}

	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	return q, nil
}

// Offset is the number of entries before this page
func (q LeaderboardQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

func (q LeaderboardQuery) cacheKey() string {
	return fmt.Sprintf("leaderboard:%s:%s:%s:%d:%d", q.Scope, q.State, q.City, q.Page, q.Limit)
}

// LeaderboardService ranks citizens by lifetime coins earned
type LeaderboardService struct {
	db     database.Querier
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.SugaredLogger
}

// NewLeaderboardService creates a leaderboard. A nil cache disables page caching.
func NewLeaderboardService(db database.Querier, cache *redis.Client, ttl time.Duration, logger *zap.SugaredLogger) *LeaderboardService {
	return &LeaderboardService{db: db, cache: cache, ttl: ttl, logger: logger}
}

// Rank returns one page of the leaderboard. Ranks are global across pages:
// the i-th entry of page p is ranked (p-1)*limit + i + 1.
func (s *LeaderboardService) Rank(ctx context.Context, q LeaderboardQuery) ([]models.LeaderboardEntry, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}
	if s.cache == nil || s.ttl <= 0 {
		return s.load(ctx, q)
	}

	key := q.cacheKey()
	if entries, ok := s.cached(ctx, key); ok {
		return entries, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		entries, err := s.load(ctx, q)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, entries)
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.LeaderboardEntry), nil
}

func (s *LeaderboardService) load(ctx context.Context, q LeaderboardQuery) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.name, u.city, u.state, COALESCE(w.total_earned, 0) AS total_earned
		FROM users u
		LEFT JOIN coin_wallets w ON w.user_id = u.id
		WHERE u.role = 'citizen'
			AND ($1 = '' OR u.city = $1)
			AND ($2 = '' OR u.state = $2)
		ORDER BY total_earned DESC, u.id
		OFFSET $3 LIMIT $4`,
		q.City, q.State, q.Offset(), q.Limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := make([]models.LeaderboardEntry, 0, q.Limit)
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Name, &e.City, &e.State, &e.TotalEarned); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		e.Rank = q.Offset() + len(entries) + 1
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *LeaderboardService) cached(ctx context.Context, key string) ([]models.LeaderboardEntry, bool) {
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warnw("Leaderboard cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warnw("Discarding corrupt leaderboard cache entry", "key", key, "error", err)
		return nil, false
	}
	return entries, true
}

func (s *LeaderboardService) store(ctx context.Context, key string, entries []models.LeaderboardEntry) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warnw("Leaderboard cache write failed", "key", key, "error", err)
	}
}

// MyRank reports the user's position within scope, filling the city or state
// filter from the user's own profile. Users who never earned are unranked.
func (s *LeaderboardService) MyRank(ctx context.Context, userID uuid.UUID, scope Scope) (*models.UserRank, error) {
	var city, state string
	var total int
	err := s.db.QueryRow(ctx, `
		SELECT u.city, u.state, COALESCE(w.total_earned, 0)
		FROM users u
		LEFT JOIN coin_wallets w ON w.user_id = u.id
		WHERE u.id = $1`,
		userID,
	).Scan(&city, &state, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user rank: %w", err)
	}

	q, err := LeaderboardQuery{Scope: scope, City: city, State: state}.Normalize()
	if err != nil {
		return nil, err
	}

	result := &models.UserRank{UserID: userID, TotalEarned: total, Scope: string(q.Scope)}
	if total == 0 {
		return result, nil
	}

	var ahead int
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM users u
		JOIN coin_wallets w ON w.user_id = u.id
		WHERE u.role = 'citizen'
			AND ($1 = '' OR u.city = $1)
			AND ($2 = '' OR u.state = $2)
			AND w.total_earned > $3`,
		q.City, q.State, total,
	).Scan(&ahead)
	if err != nil {
		return nil, fmt.Errorf("count users ahead: %w", err)
	}
	rank := ahead + 1
	result.Rank = &rank
	return result, nil
}
