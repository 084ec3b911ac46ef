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

func TestHistoryAppend(t *testing.T) {
	mock := newMock(t)
	svc := NewHistoryService(mock, testLogger())
	complaint, actor := uuid.New(), uuid.New()
	at := time.Now()

	mock.ExpectExec("INSERT INTO complaint_status_history").
		WithArgs(pgxmock.AnyArg(), complaint, "ASSIGNED", "on it", &actor, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry, err := svc.Append(context.Background(), mock, complaint, models.StatusAssigned, "on it", &actor, at)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, entry.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryAppendSystemWithNothingToWrite(t *testing.T) {
	mock := newMock(t)
	svc := NewHistoryService(mock, testLogger())

	require.NoError(t, svc.AppendSystem(context.Background(), mock, nil, models.StatusBreached, "late", time.Now()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryForComplaint(t *testing.T) {
	mock := newMock(t)
	svc := NewHistoryService(mock, testLogger())
	complaint, citizen := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM complaint_status_history").
		WithArgs(complaint, 200).
		WillReturnRows(pgxmock.NewRows([]string{"id", "complaint_id", "status", "note", "actor_id", "created_at"}).
			AddRow(uuid.New(), complaint, "SUBMITTED", "Complaint submitted", &citizen, now).
			AddRow(uuid.New(), complaint, "BREACHED", breachNote, (*uuid.UUID)(nil), now.Add(time.Hour)))

	entries, err := svc.ForComplaint(context.Background(), complaint, 200)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, citizen, *entries[0].ActorID)
	assert.Nil(t, entries[1].ActorID)
	assert.Equal(t, models.StatusBreached, entries[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
