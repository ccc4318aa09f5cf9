package repository

import (
	"context"
	"sync"
	"time"

	"insurance-ledger/internal/models"
)

type MemoryEscrowRepository struct {
	mu       sync.RWMutex
	accounts map[int64]*models.EscrowAccount
}

func NewMemoryEscrowRepository() *MemoryEscrowRepository {
	return &MemoryEscrowRepository{accounts: make(map[int64]*models.EscrowAccount)}
}

func (r *MemoryEscrowRepository) Credit(_ context.Context, policyID int64, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[policyID]
	if !ok {
		account = &models.EscrowAccount{PolicyID: policyID}
		r.accounts[policyID] = account
	}
	account.Balance += amount
	account.Credited += amount
	account.UpdatedAt = time.Now()
	return nil
}

// Debit checks and decrements under the same lock, the in-memory equivalent
// of the conditional UPDATE on Postgres.
func (r *MemoryEscrowRepository) Debit(_ context.Context, policyID int64, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[policyID]
	if !ok || account.Balance < amount {
		return models.ErrInsufficientEscrow
	}
	account.Balance -= amount
	account.Debited += amount
	account.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryEscrowRepository) Balance(_ context.Context, policyID int64) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[policyID]
	if !ok {
		return 0, nil
	}
	return account.Balance, nil
}

func (r *MemoryEscrowRepository) GetAccount(_ context.Context, policyID int64) (*models.EscrowAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[policyID]
	if !ok {
		return nil, models.ErrNotFound
	}
	snapshot := *account
	return &snapshot, nil
}
