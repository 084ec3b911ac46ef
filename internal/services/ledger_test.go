package services

import (
	"context"
	"testing"
	"time"

	"github.com/aawaaz/grievance-engine/internal/models"
	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerAwardThenDeduct(t *testing.T) {
	mock := newMock(t)
	metrics := testMetrics()
	ledger := NewLedger(mock, metrics, testLogger())
	user, wallet := uuid.New(), uuid.New()
	ctx := context.Background()

	expectAward(mock, wallet, user, 0, 0, 10, "COMPLAINT_SUBMITTED")

	mock.ExpectBegin()
	expectWalletLock(mock, wallet, user, 10, 10)
	// totalEarned is untouched by a debit
	expectPost(mock, wallet, -4, 0, "REWARD_REDEMPTION")
	mock.ExpectCommit()

	awarded, err := ledger.Award(ctx, user, 10, models.ReasonComplaintSubmitted, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, awarded.Amount)
	assert.Equal(t, wallet, awarded.WalletID)

	deducted, err := ledger.Deduct(ctx, user, 4, models.ReasonRedemption, nil)
	require.NoError(t, err)
	assert.Equal(t, -4, deducted.Amount)

	assert.Equal(t, 10.0, testutil.ToFloat64(metrics.CoinsAwarded.WithLabelValues("COMPLAINT_SUBMITTED")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.CoinsDeducted.WithLabelValues("REWARD_REDEMPTION")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerDeductInsufficientBalanceRollsBack(t *testing.T) {
	mock := newMock(t)
	ledger := NewLedger(mock, testMetrics(), testLogger())
	user, wallet := uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectWalletLock(mock, wallet, user, 6, 10)
	mock.ExpectRollback()

	_, err := ledger.Deduct(context.Background(), user, 7, models.ReasonRedemption, nil)
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRejectsNonPositiveAmounts(t *testing.T) {
	mock := newMock(t)
	ledger := NewLedger(mock, testMetrics(), testLogger())

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := ledger.Award(context.Background(), uuid.New(), 0, models.ReasonComplaintSubmitted, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = ledger.Deduct(context.Background(), uuid.New(), -5, models.ReasonRedemption, nil)
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerWalletIsCreatedLazily(t *testing.T) {
	mock := newMock(t)
	ledger := NewLedger(mock, testMetrics(), testLogger())
	user, wallet := uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectWalletLock(mock, wallet, user, 0, 0)
	mock.ExpectCommit()

	w, err := ledger.Wallet(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 0, w.Balance)
	assert.Equal(t, 0, w.TotalEarned)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerTransactions(t *testing.T) {
	mock := newMock(t)
	ledger := NewLedger(mock, testMetrics(), testLogger())
	user, wallet, ref := uuid.New(), uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM coin_transactions t").
		WithArgs(user, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "wallet_id", "amount", "reason", "reference_id", "created_at"}).
			AddRow(uuid.New(), wallet, 25, "SLA_MET", &ref, now).
			AddRow(uuid.New(), wallet, 15, "COMPLAINT_RESOLVED", &ref, now.Add(-time.Second)))

	txns, err := ledger.Transactions(context.Background(), user, 50)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, models.ReasonSLAMet, txns[0].Reason)
	assert.Equal(t, ref, *txns[1].ReferenceID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerAwardIsRecordedOncePerReference(t *testing.T) {
	mock := newMock(t)
	metrics := testMetrics()
	ledger := NewLedger(mock, metrics, testLogger())
	user, wallet, complaint := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectWalletLock(mock, wallet, user, 30, 30)
	mock.ExpectExec("INSERT INTO coin_transactions").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectRollback()

	_, err := ledger.Award(context.Background(), user, 25, models.ReasonSLAMet, &complaint)
	require.ErrorIs(t, err, ErrAlreadyAwarded)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.CoinsAwarded.WithLabelValues("SLA_MET")))
	require.NoError(t, mock.ExpectationsWereMet())
}
