package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/aawaaz/grievance-engine/internal/database"
	"github.com/aawaaz/grievance-engine/internal/models"
	"go.uber.org/zap"
)

// MerkleService holds a Merkle tree over the ordered coin transaction log,
// giving auditors a single root to compare and per-entry inclusion proofs.
type MerkleService struct {
	mu            sync.RWMutex
	leaves        []string
	layers        [][]string
	root          string
	lastBuildTime time.Time
	logger        *zap.SugaredLogger
}

// NewMerkleService creates a new Merkle service
func NewMerkleService(logger *zap.SugaredLogger) *MerkleService {
	return &MerkleService{
		leaves: make([]string, 0),
		layers: make([][]string, 0),
		logger: logger,
	}
}

// LeafHash is the canonical hash of one ledger entry
func LeafHash(t models.CoinTransaction) string {
	ref := ""
	if t.ReferenceID != nil {
		ref = t.ReferenceID.String()
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s|%s|%s",
		t.ID, t.WalletID, t.Amount, t.Reason, ref, t.CreatedAt.UTC().Format(time.RFC3339Nano))))
	return hex.EncodeToString(sum[:])
}

// BuildFromHashes rebuilds the tree from leaf hashes in ledger order
func (m *MerkleService) BuildFromHashes(hashes []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.leaves = hashes
	m.buildTree()
	m.lastBuildTime = time.Now()

	m.logger.Infow("Merkle tree rebuilt",
		"leaves", len(m.leaves),
		"root", m.root,
	)
}

// GetRoot returns the current Merkle root
func (m *MerkleService) GetRoot() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// GetLeafCount returns the number of leaves
func (m *MerkleService) GetLeafCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.leaves)
}

// GetLastBuildTime returns when the tree was last rebuilt
func (m *MerkleService) GetLastBuildTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBuildTime
}

// GetProof generates a Merkle proof for the given leaf index
func (m *MerkleService) GetProof(index int) (*models.MerkleProof, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if index < 0 || index >= len(m.leaves) {
		return nil, fmt.Errorf("index %d out of range (0-%d)", index, len(m.leaves)-1)
	}

	proof := &models.MerkleProof{
		LeafHash: m.leaves[index],
		Root:     m.root,
		Index:    index,
		Proof:    make([]models.ProofStep, 0),
	}

	currentIndex := index
	for i := 0; i < len(m.layers)-1; i++ {
		layer := m.layers[i]
		isRight := currentIndex%2 == 1
		siblingIndex := currentIndex + 1
		if isRight {
			siblingIndex = currentIndex - 1
		}

		// An odd trailing node is paired with itself.
		sibling := layer[currentIndex]
		if siblingIndex < len(layer) {
			sibling = layer[siblingIndex]
		}
		position := "right"
		if isRight {
			position = "left"
		}
		proof.Proof = append(proof.Proof, models.ProofStep{Hash: sibling, Position: position})

		currentIndex /= 2
	}

	proof.Verified = VerifyProof(proof)
	return proof, nil
}

// VerifyProof recomputes the root from a leaf and its proof path
func VerifyProof(p *models.MerkleProof) bool {
	if p == nil || p.Root == "" {
		return false
	}
	hash := p.LeafHash
	for _, step := range p.Proof {
		if step.Position == "left" {
			hash = hashPair(step.Hash, hash)
		} else {
			hash = hashPair(hash, step.Hash)
		}
	}
	return hash == p.Root
}

// buildTree constructs the Merkle tree from leaves (internal, must hold write lock)
func (m *MerkleService) buildTree() {
	if len(m.leaves) == 0 {
		m.root = ""
		m.layers = nil
		return
	}

	currentLayer := make([]string, len(m.leaves))
	copy(currentLayer, m.leaves)
	m.layers = [][]string{currentLayer}

	for len(currentLayer) > 1 {
		nextLayer := make([]string, 0, (len(currentLayer)+1)/2)
		for i := 0; i < len(currentLayer); i += 2 {
			left := currentLayer[i]
			right := left
			if i+1 < len(currentLayer) {
				right = currentLayer[i+1]
			}
			nextLayer = append(nextLayer, hashPair(left, right))
		}
		m.layers = append(m.layers, nextLayer)
		currentLayer = nextLayer
	}

	m.root = currentLayer[0]
}

// hashPair combines and hashes two nodes
func hashPair(left, right string) string {
	h := sha256.New()
	h.Write([]byte(left + right))
	return hex.EncodeToString(h.Sum(nil))
}

// AuditResult summarises one ledger audit
type AuditResult struct {
	Root       string                  `json:"root"`
	Leaves     int                     `json:"leaves"`
	Mismatches []models.WalletMismatch `json:"mismatches"`
}

// LedgerAuditor periodically rebuilds the ledger Merkle tree and reconciles
// every wallet against its transactions. It reports, never corrects.
type LedgerAuditor struct {
	db      database.Querier
	tree    *MerkleService
	metrics *Metrics
	logger  *zap.SugaredLogger
}

// NewLedgerAuditor creates a new background ledger auditor
func NewLedgerAuditor(db database.Querier, tree *MerkleService, metrics *Metrics, logger *zap.SugaredLogger) *LedgerAuditor {
	return &LedgerAuditor{db: db, tree: tree, metrics: metrics, logger: logger}
}

// Start begins the periodic audit loop
func (w *LedgerAuditor) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial build
	w.run(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Ledger auditor stopped")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *LedgerAuditor) run(ctx context.Context) {
	if _, err := w.Audit(ctx); err != nil {
		w.logger.Errorw("Ledger audit failed", "error", err)
	}
}

// Audit rebuilds the tree and reconciles wallets
func (w *LedgerAuditor) Audit(ctx context.Context) (*AuditResult, error) {
	w.logger.Debug("Rebuilding ledger Merkle tree...")

	hashes, err := w.leafHashes(ctx)
	if err != nil {
		return nil, err
	}
	w.tree.BuildFromHashes(hashes)

	mismatches, err := w.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	w.metrics.WalletMismatches.Set(float64(len(mismatches)))
	for _, m := range mismatches {
		w.logger.Errorw("Wallet disagrees with ledger",
			"user", m.UserID,
			"balance", m.Balance,
			"ledger_balance", m.LedgerBalance,
			"total_earned", m.TotalEarned,
			"ledger_earnings", m.LedgerEarnings,
		)
	}

	return &AuditResult{Root: w.tree.GetRoot(), Leaves: len(hashes), Mismatches: mismatches}, nil
}

// TODO: stream leaves in pages once the transaction log outgrows a single read.
func (w *LedgerAuditor) leafHashes(ctx context.Context) ([]string, error) {
	rows, err := w.db.Query(ctx, `
		SELECT id, wallet_id, amount, reason, reference_id, created_at
		FROM coin_transactions
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	hashes := make([]string, 0)
	for rows.Next() {
		var t models.CoinTransaction
		var reason string
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Amount, &reason, &t.ReferenceID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		t.Reason = models.Reason(reason)
		hashes = append(hashes, LeafHash(t))
	}
	return hashes, rows.Err()
}

// Reconcile returns wallets whose balance or lifetime earnings disagree with
// the sum of their transactions.
func (w *LedgerAuditor) Reconcile(ctx context.Context) ([]models.WalletMismatch, error) {
	rows, err := w.db.Query(ctx, `
		SELECT w.user_id, w.balance, COALESCE(SUM(t.amount), 0),
			w.total_earned, COALESCE(SUM(t.amount) FILTER (WHERE t.amount > 0), 0)
		FROM coin_wallets w
		LEFT JOIN coin_transactions t ON t.wallet_id = w.id
		GROUP BY w.id, w.user_id, w.balance, w.total_earned
		HAVING w.balance <> COALESCE(SUM(t.amount), 0)
			OR w.total_earned <> COALESCE(SUM(t.amount) FILTER (WHERE t.amount > 0), 0)`)
	if err != nil {
		return nil, fmt.Errorf("reconcile wallets: %w", err)
	}
	defer rows.Close()

	mismatches := make([]models.WalletMismatch, 0)
	for rows.Next() {
		var m models.WalletMismatch
		if err := rows.Scan(&m.UserID, &m.Balance, &m.LedgerBalance, &m.TotalEarned, &m.LedgerEarnings); err != nil {
			return nil, fmt.Errorf("scan wallet mismatch: %w", err)
		}
		mismatches = append(mismatches, m)
	}
	return mismatches, rows.Err()
}
