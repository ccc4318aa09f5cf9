package services

import (
	"context"
	"fmt"
	"log/slog"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/repository"
)

// LedgerService is the fund-custody layer over the per-policy escrow
// accounts. The purchase and payout repositories move funds inside their own
// transactions; this service exposes the custody primitives and the balance
// views.
type LedgerService struct {
	escrowRepo repository.EscrowRepository
}

func NewLedgerService(escrowRepo repository.EscrowRepository) *LedgerService {
	return &LedgerService{escrowRepo: escrowRepo}
}

// Credit adds funds to the policy's escrow account.
func (s *LedgerService) Credit(ctx context.Context, policyID int64, amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidParameters
	}
	if err := s.escrowRepo.Credit(ctx, policyID, amount); err != nil {
		return fmt.Errorf("failed to credit escrow: %w", err)
	}
	slog.Info("escrow credited", "policy_id", policyID, "amount", amount)
	return nil
}

// Debit releases funds from the policy's escrow account. The balance check
// and the decrement are one atomic step in the repository; a failure leaves
// the account untouched.
func (s *LedgerService) Debit(ctx context.Context, policyID int64, amount int64) error {
	if amount <= 0 {
		return models.ErrInvalidParameters
	}
	if err := s.escrowRepo.Debit(ctx, policyID, amount); err != nil {
		return err
	}
	slog.Info("escrow debited", "policy_id", policyID, "amount", amount)
	return nil
}

// Balance returns the remaining escrow balance for a policy. Policies that
// never received a credit report zero.
func (s *LedgerService) Balance(ctx context.Context, policyID int64) (int64, error) {
	return s.escrowRepo.Balance(ctx, policyID)
}

// Account returns the full escrow account with lifetime credit and debit
// totals.
func (s *LedgerService) Account(ctx context.Context, policyID int64) (*models.EscrowAccount, error) {
	return s.escrowRepo.GetAccount(ctx, policyID)
}
