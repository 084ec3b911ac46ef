package services

import (
	"context"
	"testing"
	"time"

	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	badgeColumns = []string{"id", "slug", "name", "tier", "criteria_type", "criteria_threshold"}
	statsColumns = []string{"submitted", "resolved", "sla_resolved", "total_coins", "recent"}
)

func TestCriteria(t *testing.T) {
	stats := models.UserStats{
		ComplaintsSubmitted: 10,
		ComplaintsResolved:  4,
		SLAResolved:         5,
		TotalCoins:          499,
		RecentComplaints:    5,
	}

	cases := []struct {
		kind      string
		threshold int
		want      bool
	}{
		{"complaints_submitted", 10, true},
		{"complaints_submitted", 11, false},
		{"complaints_resolved", 5, false},
		{"sla_resolved", 5, true},
		{"total_coins", 500, false},
		{"total_coins", 499, true},
		{"streak_7d", 5, true},
	}
	for _, tc := range cases {
		crit, err := ParseCriterion(tc.kind, tc.threshold)
		require.NoError(t, err)
		assert.Equal(t, tc.kind, crit.Kind())
		assert.Equal(t, tc.want, crit.Evaluate(stats), "%s >= %d", tc.kind, tc.threshold)
	}

	_, err := ParseCriterion("karma", 1)
	require.Error(t, err)
}

func TestBadgeRecheckAwardsOnce(t *testing.T) {
	mock := newMock(t)
	engine := NewBadgeEngine(mock, testMetrics(), testLogger())
	user := uuid.New()
	watchdog := uuid.New()
	guardian := uuid.New()

	mock.ExpectQuery("WHERE NOT EXISTS").
		WithArgs(user).
		WillReturnRows(pgxmock.NewRows(badgeColumns).
			AddRow(watchdog, "civic-watchdog", "Civic Watchdog", "silver", "complaints_submitted", 10).
			AddRow(guardian, "city-guardian", "City Guardian", "gold", "complaints_submitted", 25))
	mock.ExpectQuery("is_duplicate = FALSE").
		WithArgs(user, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(statsColumns).AddRow(10, 0, 0, 140, 3))
	mock.ExpectExec("INSERT INTO user_badges").
		WithArgs(user, watchdog, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	awarded, err := engine.Recheck(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, "civic-watchdog", awarded[0].Slug)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBadgeRecheckConcurrentInsertIsNotReported(t *testing.T) {
	mock := newMock(t)
	engine := NewBadgeEngine(mock, testMetrics(), testLogger())
	user, badge := uuid.New(), uuid.New()

	mock.ExpectQuery("WHERE NOT EXISTS").
		WillReturnRows(pgxmock.NewRows(badgeColumns).AddRow(badge, "first-voice", "First Voice", "bronze", "complaints_submitted", 1))
	mock.ExpectQuery("is_duplicate = FALSE").
		WillReturnRows(pgxmock.NewRows(statsColumns).AddRow(1, 0, 0, 30, 1))
	// another trigger won the race
	mock.ExpectExec("INSERT INTO user_badges").WillReturnResult(pgxmock.NewResult("INSERT", 0))

	awarded, err := engine.Recheck(context.Background(), user)
	require.NoError(t, err)
	assert.Empty(t, awarded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBadgeRecheckSkipsStatsWhenAllEarned(t *testing.T) {
	mock := newMock(t)
	engine := NewBadgeEngine(mock, testMetrics(), testLogger())
	expectNoPendingBadges(mock)

	awarded, err := engine.Recheck(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, awarded)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBadgeList(t *testing.T) {
	mock := newMock(t)
	engine := NewBadgeEngine(mock, testMetrics(), testLogger())
	user := uuid.New()
	at := time.Now()

	mock.ExpectQuery("LEFT JOIN user_badges").
		WithArgs(user).
		WillReturnRows(pgxmock.NewRows(append(badgeColumns, "awarded_at")).
			AddRow(uuid.New(), "first-voice", "First Voice", "bronze", "complaints_submitted", 1, &at).
			AddRow(uuid.New(), "civic-watchdog", "Civic Watchdog", "silver", "complaints_submitted", 10, (*time.Time)(nil)))

	list, err := engine.List(context.Background(), user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Earned)
	assert.False(t, list[1].Earned)
	require.NoError(t, mock.ExpectationsWereMet())
}
