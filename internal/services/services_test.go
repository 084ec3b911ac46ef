package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var walletColumns = []string{"id", "user_id", "balance", "total_earned", "created_at", "updated_at"}

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func testMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

// expectWalletLock expects the lazy-create and row lock that open every ledger mutation
func expectWalletLock(mock pgxmock.PgxPoolIface, walletID, userID uuid.UUID, balance, earned int) {
	now := time.Now()
	mock.ExpectExec("INSERT INTO coin_wallets").WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("FROM coin_wallets WHERE user_id = \\$1 FOR UPDATE").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(walletColumns).AddRow(walletID, userID, balance, earned, now, now))
}

// expectPost expects one transaction insert and the matching wallet update
func expectPost(mock pgxmock.PgxPoolIface, walletID uuid.UUID, amount, earned int, reason string) {
	mock.ExpectExec("INSERT INTO coin_transactions").
		WithArgs(pgxmock.AnyArg(), walletID, amount, reason, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE coin_wallets SET balance").
		WithArgs(walletID, amount, earned, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

// expectAward expects a complete, committed Ledger.Award
func expectAward(mock pgxmock.PgxPoolIface, walletID, userID uuid.UUID, balance, earned, amount int, reason string) {
	mock.ExpectBegin()
	expectWalletLock(mock, walletID, userID, balance, earned)
	expectPost(mock, walletID, amount, amount, reason)
	mock.ExpectCommit()
}

// expectNoPendingBadges expects a badge recheck that finds nothing left to earn
func expectNoPendingBadges(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("WHERE NOT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"id", "slug", "name", "tier", "criteria_type", "criteria_threshold"}))
}

func newTestHooks(mock pgxmock.PgxPoolIface, metrics *Metrics) *AwardHooks {
	logger := testLogger()
	return NewAwardHooks(NewLedger(mock, metrics, logger), NewBadgeEngine(mock, metrics, logger), metrics, logger)
}
