package models

import (
	"time"

	"github.com/google/uuid"
)

// Reason is the ledger reason code attached to every coin transaction
type Reason string

const (
	ReasonComplaintSubmitted Reason = "COMPLAINT_SUBMITTED"
	ReasonPhotoEvidence      Reason = "PHOTO_EVIDENCE"
	ReasonFirstComplaint     Reason = "FIRST_COMPLAINT"
	ReasonMilestone10        Reason = "MILESTONE_10"
	ReasonMilestone25        Reason = "MILESTONE_25"
	ReasonComplaintResolved  Reason = "COMPLAINT_RESOLVED"
	ReasonSLAMet             Reason = "SLA_MET"
	ReasonSLABreach          Reason = "SLA_BREACH"
	ReasonRedemption         Reason = "REWARD_REDEMPTION"
)

// CoinWallet is the per-user balance. Balance equals the sum of the wallet's
// transactions; TotalEarned equals the sum of its positive transactions.
type CoinWallet struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      uuid.UUID `json:"user_id" db:"user_id"`
	Balance     int       `json:"balance" db:"balance"`
	TotalEarned int       `json:"total_earned" db:"total_earned"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// CoinTransaction is an immutable ledger entry. Amount is signed.
type CoinTransaction struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	WalletID    uuid.UUID  `json:"wallet_id" db:"wallet_id"`
	Amount      int        `json:"amount" db:"amount"`
	Reason      Reason     `json:"reason" db:"reason"`
	ReferenceID *uuid.UUID `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// CoinAward summarises one award made as a side effect of a complaint event.
// TransactionID is nil when the award was found already recorded.
type CoinAward struct {
	Reason        Reason     `json:"reason"`
	Amount        int        `json:"amount"`
	TransactionID *uuid.UUID `json:"transaction_id,omitempty"`
}

// Badge is a catalog entry
type Badge struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Slug              string    `json:"slug" db:"slug"`
	Name              string    `json:"name" db:"name"`
	Tier              string    `json:"tier" db:"tier"`
	CriteriaType      string    `json:"criteria_type" db:"criteria_type"`
	CriteriaThreshold int       `json:"criteria_threshold" db:"criteria_threshold"`
}

// BadgeStatus is a catalog badge annotated for one user
type BadgeStatus struct {
	Badge
	Earned    bool       `json:"earned"`
	AwardedAt *time.Time `json:"awarded_at,omitempty"`
}

// Reward is a redeemable catalog entry. Stock -1 means unlimited.
type Reward struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Partner   string    `json:"partner" db:"partner"`
	Name      string    `json:"name" db:"name"`
	Category  string    `json:"category" db:"category"`
	CoinCost  int       `json:"coin_cost" db:"coin_cost"`
	Stock     int       `json:"stock" db:"stock"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UnlimitedStock marks a reward that never runs out
const UnlimitedStock = -1

// Redemption records one exchange of coins for a reward code
type Redemption struct {
	ID            uuid.UUID `json:"id" db:"id"`
	UserID        uuid.UUID `json:"user_id" db:"user_id"`
	RewardID      uuid.UUID `json:"reward_id" db:"reward_id"`
	CoinsSpent    int       `json:"coins_spent" db:"coins_spent"`
	Code          string    `json:"code" db:"code"`
	TransactionID uuid.UUID `json:"transaction_id" db:"transaction_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// LeaderboardEntry is one ranked citizen
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	City        string    `json:"city,omitempty"`
	State       string    `json:"state,omitempty"`
	TotalEarned int       `json:"total_earned"`
}

// UserRank is a citizen's own position. Rank is nil when unranked.
type UserRank struct {
	UserID      uuid.UUID `json:"user_id"`
	Rank        *int      `json:"rank"`
	TotalEarned int       `json:"total_earned"`
	Scope       string    `json:"scope"`
}

// UserStats are the aggregates badge criteria evaluate against
type UserStats struct {
	ComplaintsSubmitted int `json:"complaints_submitted"`
	ComplaintsResolved  int `json:"complaints_resolved"`
	SLAResolved         int `json:"sla_resolved"`
	TotalCoins          int `json:"total_coins"`
	RecentComplaints    int `json:"recent_complaints"`
}

// Profile is the aggregate view served to the profile collaborator
type Profile struct {
	Wallet *CoinWallet   `json:"wallet"`
	Stats  UserStats     `json:"stats"`
	Badges []BadgeStatus `json:"badges"`
	Rank   *UserRank     `json:"rank"`
}

// MerkleProof contains the Merkle proof for a single ledger entry
type MerkleProof struct {
	LeafHash string      `json:"leaf_hash"`
	Root     string      `json:"root"`
	Proof    []ProofStep `json:"proof"`
	Index    int         `json:"index"`
	Verified bool        `json:"verified"`
}

// ProofStep is a single step in a Merkle proof path
type ProofStep struct {
	Hash     string `json:"hash"`
	Position string `json:"position"` // "left" | "right"
}

// WalletMismatch is a wallet whose cached totals disagree with its transactions
type WalletMismatch struct {
	UserID         uuid.UUID `json:"user_id"`
	Balance        int       `json:"balance"`
	LedgerBalance  int       `json:"ledger_balance"`
	TotalEarned    int       `json:"total_earned"`
	LedgerEarnings int       `json:"ledger_earnings"`
}
