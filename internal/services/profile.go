package services

import (
	"context"

	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/google/uuid"
)

// ProfileService assembles the citizen profile view
type ProfileService struct {
	ledger      *Ledger
	badges      *BadgeEngine
	leaderboard *LeaderboardService
}

// NewProfileService creates a new profile service
func NewProfileService(ledger *Ledger, badges *BadgeEngine, leaderboard *LeaderboardService) *ProfileService {
	return &ProfileService{ledger: ledger, badges: badges, leaderboard: leaderboard}
}

// Profile returns the user's wallet, aggregates, badge catalog and national rank
func (s *ProfileService) Profile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	rank, err := s.leaderboard.MyRank(ctx, userID, ScopeNational)
	if err != nil {
		return nil, err
	}
	wallet, err := s.ledger.Wallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats, err := s.badges.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	badges, err := s.badges.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{Wallet: wallet, Stats: stats, Badges: badges, Rank: rank}, nil
}
