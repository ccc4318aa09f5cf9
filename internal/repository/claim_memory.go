package repository

import (
	"context"
	"sync"
	"time"

	"insurance-ledger/internal/models"
)

type MemoryClaimRepository struct {
	mu     sync.RWMutex
	claims map[int64]*models.Claim
	nextID int64
	escrow *MemoryEscrowRepository
}

func NewMemoryClaimRepository(escrow *MemoryEscrowRepository) *MemoryClaimRepository {
	return &MemoryClaimRepository{
		claims: make(map[int64]*models.Claim),
		nextID: 1,
		escrow: escrow,
	}
}

func (r *MemoryClaimRepository) Create(_ context.Context, claim *models.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim.ID = r.nextID
	r.nextID++
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = time.Now()
	}
	stored := *claim
	r.claims[stored.ID] = &stored
	return nil
}

func (r *MemoryClaimRepository) GetByID(_ context.Context, id int64) (*models.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.claims[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	snapshot := *claim
	return &snapshot, nil
}

// GetByIDFresh is identical to GetByID; the memory store has no cache layer.
func (r *MemoryClaimRepository) GetByIDFresh(ctx context.Context, id int64) (*models.Claim, error) {
	return r.GetByID(ctx, id)
}

func (r *MemoryClaimRepository) Adjudicate(_ context.Context, id int64, verdict models.AdjudicationVerdict, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim, ok := r.claims[id]
	if !ok {
		return models.ErrNotFound
	}
	if claim.Adjudicated() {
		return models.ErrAlreadyAdjudicated
	}

	claim.Verified = verdict == models.VerdictVerified
	claim.Rejected = verdict == models.VerdictRejected
	adjudicatedAt := at
	claim.AdjudicatedAt = &adjudicatedAt
	return nil
}

// SettlePayout validates the claim, debits escrow and flips paid under the
// claim lock, so a failed debit leaves the claim exactly as it was.
func (r *MemoryClaimRepository) SettlePayout(ctx context.Context, claimID int64, policyID int64, amount int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim, ok := r.claims[claimID]
	if !ok {
		return models.ErrNotFound
	}
	if claim.Paid {
		return models.ErrAlreadyPaid
	}
	if !claim.Verified || claim.Rejected {
		return models.ErrNotVerified
	}

	if err := r.escrow.Debit(ctx, policyID, amount); err != nil {
		return err
	}

	claim.Paid = true
	paidAt := at
	claim.PaidAt = &paidAt
	return nil
}

func (r *MemoryClaimRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.claims)), nil
}
