package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSLAHours(t *testing.T) {
	assert.Equal(t, 2, DefaultSLAHours(models.SeverityCritical))
	assert.Equal(t, 12, DefaultSLAHours(models.SeverityHigh))
	assert.Equal(t, 24, DefaultSLAHours(models.SeverityMedium))
	assert.Equal(t, 48, DefaultSLAHours(models.SeverityLow))
	assert.Equal(t, 48, DefaultSLAHours("UNKNOWN"))
}

func TestSLAPolicyExactRule(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM sla_rules WHERE category").
		WithArgs("water", "CRITICAL", "DEPT_WATER").
		WillReturnRows(pgxmock.NewRows([]string{"hours_allowed"}).AddRow(4))

	submitted := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	got, err := NewSLAPolicy(mock, testLogger()).Assign(context.Background(), "water", models.SeverityCritical, "DEPT_WATER", submitted)
	require.NoError(t, err)
	assert.Equal(t, 4, got.HoursAllowed)
	assert.Equal(t, submitted.Add(4*time.Hour), got.Deadline)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAPolicyFallsBackToSeverityAndDepartment(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM sla_rules WHERE category").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM sla_rules WHERE severity").
		WithArgs("HIGH", "DEPT_ELECTRICITY").
		WillReturnRows(pgxmock.NewRows([]string{"hours_allowed"}).AddRow(8))

	hours, err := NewSLAPolicy(mock, testLogger()).HoursAllowed(context.Background(), "streetlight", models.SeverityHigh, "DEPT_ELECTRICITY")
	require.NoError(t, err)
	assert.Equal(t, 8, hours)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAPolicyFallsBackToDefaults(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM sla_rules WHERE category").WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("FROM sla_rules WHERE severity").WillReturnError(pgx.ErrNoRows)

	hours, err := NewSLAPolicy(mock, testLogger()).HoursAllowed(context.Background(), "roads", models.SeverityMedium, "DEPT_ROADS")
	require.NoError(t, err)
	assert.Equal(t, 24, hours)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSLAPolicyPropagatesStoreErrors(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery("FROM sla_rules WHERE category").WillReturnError(errors.New("connection reset"))

	_, err := NewSLAPolicy(mock, testLogger()).HoursAllowed(context.Background(), "roads", models.SeverityLow, "DEPT_ROADS")
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
