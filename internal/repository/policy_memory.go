package repository

import (
	"context"
	"sync"
	"time"

	"insurance-ledger/internal/models"
)

// MemoryPolicyRepository keeps policies in an in-process arena keyed by
// monotonically increasing IDs. A single mutex serializes mutations so the
// read-check-write sequences behave like the Postgres transactions; the
// escrow store is shared with the other repositories so purchase credits
// land under the same serialization.
type MemoryPolicyRepository struct {
	mu       sync.RWMutex
	policies map[int64]*models.Policy
	nextID   int64
	escrow   *MemoryEscrowRepository
}

func NewMemoryPolicyRepository(escrow *MemoryEscrowRepository) *MemoryPolicyRepository {
	return &MemoryPolicyRepository{
		policies: make(map[int64]*models.Policy),
		nextID:   1,
		escrow:   escrow,
	}
}

func (r *MemoryPolicyRepository) Create(_ context.Context, policy *models.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	policy.ID = r.nextID
	r.nextID++
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now()
	}
	stored := *policy
	r.policies[stored.ID] = &stored
	return nil
}

func (r *MemoryPolicyRepository) GetByID(_ context.Context, id int64) (*models.Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policy, ok := r.policies[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	snapshot := *policy
	return &snapshot, nil
}

// GetByIDFresh is identical to GetByID; the memory store has no cache layer.
func (r *MemoryPolicyRepository) GetByIDFresh(ctx context.Context, id int64) (*models.Policy, error) {
	return r.GetByID(ctx, id)
}

// Purchase holds the policy lock across the policyholder transition and the
// escrow credit, so no observer sees a purchased policy without its funds.
func (r *MemoryPolicyRepository) Purchase(ctx context.Context, id int64, policyholder string, startDate int64, premium int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	policy, ok := r.policies[id]
	if !ok {
		return models.ErrNotFound
	}
	if policy.Policyholder != nil {
		return models.ErrAlreadyPurchased
	}

	if err := r.escrow.Credit(ctx, id, premium); err != nil {
		return err
	}

	holder := policyholder
	start := startDate
	policy.Policyholder = &holder
	policy.StartDate = &start
	policy.Active = true
	return nil
}

func (r *MemoryPolicyRepository) Deactivate(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	policy, ok := r.policies[id]
	if !ok {
		return models.ErrNotFound
	}
	policy.Active = false
	return nil
}

func (r *MemoryPolicyRepository) ListExpiredActive(_ context.Context, now int64) ([]models.Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []models.Policy
	for _, policy := range r.policies {
		if policy.Active && policy.Expired(now) {
			expired = append(expired, *policy)
		}
	}
	return expired, nil
}

func (r *MemoryPolicyRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.policies)), nil
}
