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

// RewardSchedule is the fixed coin amount per award reason
var RewardSchedule = map[models.Reason]int{
	models.ReasonComplaintSubmitted: 10,
	models.ReasonPhotoEvidence:      5,
	models.ReasonFirstComplaint:     20,
	models.ReasonMilestone10:        50,
	models.ReasonMilestone25:        100,
	models.ReasonComplaintResolved:  15,
	models.ReasonSLAMet:             25,
	models.ReasonSLABreach:          10,
}

// Ledger is the append-only coin log and the wallets derived from it.
// Award and Deduct are the only mutation primitives.
type Ledger struct {
	db      database.DB
	logger  *zap.SugaredLogger
	metrics *Metrics
	now     func() time.Time
}

// NewLedger creates a new ledger
func NewLedger(db database.DB, metrics *Metrics, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{db: db, logger: logger, metrics: metrics, now: time.Now}
}

// Award credits amount coins to the user's wallet and raises totalEarned.
// An award with a reference is recorded at most once per reason; a repeat
// returns ErrAlreadyAwarded and leaves the wallet untouched.
func (l *Ledger) Award(ctx context.Context, userID uuid.UUID, amount int, reason models.Reason, referenceID *uuid.UUID) (*models.CoinTransaction, error) {
	var txn *models.CoinTransaction
	err := database.WithTx(ctx, l.db, func(tx pgx.Tx) error {
		var err error
		txn, err = l.awardTx(ctx, tx, userID, amount, reason, referenceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.CoinsAwarded.WithLabelValues(string(reason)).Add(float64(amount))
	return txn, nil
}

// Deduct debits amount coins. It fails with ErrInsufficientBalance, leaving
// the wallet untouched, when amount exceeds the current balance.
func (l *Ledger) Deduct(ctx context.Context, userID uuid.UUID, amount int, reason models.Reason, referenceID *uuid.UUID) (*models.CoinTransaction, error) {
	var txn *models.CoinTransaction
	err := database.WithTx(ctx, l.db, func(tx pgx.Tx) error {
		var err error
		txn, err = l.deductTx(ctx, tx, userID, amount, reason, referenceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.metrics.CoinsDeducted.WithLabelValues(string(reason)).Add(float64(amount))
	return txn, nil
}

func (l *Ledger) awardTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, reason models.Reason, referenceID *uuid.UUID) (*models.CoinTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	wallet, err := l.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	return l.post(ctx, tx, wallet, amount, amount, reason, referenceID)
}

func (l *Ledger) deductTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount int, reason models.Reason, referenceID *uuid.UUID) (*models.CoinTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	// The row lock makes this balance read authoritative for concurrent debits.
	wallet, err := l.lockWallet(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if amount > wallet.Balance {
		return nil, ErrInsufficientBalance
	}
	return l.post(ctx, tx, wallet, -amount, 0, reason, referenceID)
}

// lockWallet lazily creates the user's wallet and locks it for the rest of tx
func (l *Ledger) lockWallet(ctx context.Context, q database.Querier, userID uuid.UUID) (*models.CoinWallet, error) {
	now := l.now()
	_, err := q.Exec(ctx, `
		INSERT INTO coin_wallets (id, user_id, balance, total_earned, created_at, updated_at)
		VALUES ($1, $2, 0, 0, $3, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.New(), userID, now)
	if err != nil {
		return nil, fmt.Errorf("ensure wallet: %w", err)
	}

	var w models.CoinWallet
	err = q.QueryRow(ctx,
		`SELECT id, user_id, balance, total_earned, created_at, updated_at FROM coin_wallets WHERE user_id = $1 FOR UPDATE`,
		userID,
	).Scan(&w.ID, &w.UserID, &w.Balance, &w.TotalEarned, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return &w, nil
}

// post appends one transaction and applies it to the wallet totals
func (l *Ledger) post(ctx context.Context, q database.Querier, w *models.CoinWallet, amount, earned int, reason models.Reason, referenceID *uuid.UUID) (*models.CoinTransaction, error) {
	txn := &models.CoinTransaction{
		ID:          uuid.New(),
		WalletID:    w.ID,
		Amount:      amount,
		Reason:      reason,
		ReferenceID: referenceID,
		CreatedAt:   l.now(),
	}

	insert := `
		INSERT INTO coin_transactions (id, wallet_id, amount, reason, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if amount > 0 {
		insert += `
		ON CONFLICT (wallet_id, reason, reference_id) WHERE amount > 0 DO NOTHING`
	}
	tag, err := q.Exec(ctx, insert,
		txn.ID, txn.WalletID, txn.Amount, string(txn.Reason), txn.ReferenceID, txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert coin transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAlreadyAwarded
	}

	_, err = q.Exec(ctx,
		`UPDATE coin_wallets SET balance = balance + $2, total_earned = total_earned + $3, updated_at = $4 WHERE id = $1`,
		w.ID, amount, earned, txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("update wallet: %w", err)
	}

	w.Balance += amount
	w.TotalEarned += earned
	return txn, nil
}

// Wallet returns the user's wallet, creating an empty one on first reference
func (l *Ledger) Wallet(ctx context.Context, userID uuid.UUID) (*models.CoinWallet, error) {
	var w *models.CoinWallet
	err := database.WithTx(ctx, l.db, func(tx pgx.Tx) error {
		var err error
		w, err = l.lockWallet(ctx, tx, userID)
		return err
	})
	return w, err
}

// Transactions returns the user's most recent ledger entries
func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.CoinTransaction, error) {
	rows, err := l.db.Query(ctx, `
		SELECT t.id, t.wallet_id, t.amount, t.reason, t.reference_id, t.created_at
		FROM coin_transactions t
		JOIN coin_wallets w ON w.id = t.wallet_id
		WHERE w.user_id = $1
		ORDER BY t.created_at DESC, t.id
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]models.CoinTransaction, 0)
	for rows.Next() {
		var t models.CoinTransaction
		var reason string
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Amount, &reason, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Reason = models.Reason(reason)
		txns = append(txns, t)
	}
	return txns, rows.Err()
}
