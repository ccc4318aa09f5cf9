package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/repository"
)

// PolicyService is the policy registry: it creates policy records, handles
// the one-shot purchase transition with exact-premium escrow, and runs the
// expiry bookkeeping.
type PolicyService struct {
	policyRepo repository.PolicyRepository
	ledger     *LedgerService
	nowFn      func() int64
}

func NewPolicyService(policyRepo repository.PolicyRepository, ledger *LedgerService) *PolicyService {
	return &PolicyService{
		policyRepo: policyRepo,
		ledger:     ledger,
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// CreatePolicy registers a new policy offered by the caller, who becomes its
// insurer. Coverage, premium and duration must be positive.
func (s *PolicyService) CreatePolicy(ctx context.Context, insurer string, req models.CreatePolicyRequest) (*models.Policy, error) {
	if insurer == "" {
		return nil, models.ErrUnauthorized
	}
	if req.Coverage <= 0 || req.Premium <= 0 || req.Duration <= 0 || req.MatureTime < 0 {
		return nil, models.ErrInvalidParameters
	}

	policy := &models.Policy{
		Insurer:    insurer,
		Coverage:   req.Coverage,
		Premium:    req.Premium,
		Duration:   req.Duration,
		MatureTime: req.MatureTime,
	}
	if err := s.policyRepo.Create(ctx, policy); err != nil {
		return nil, fmt.Errorf("failed to create policy: %w", err)
	}

	slog.Info("policy created",
		"policy_id", policy.ID,
		"insurer", insurer,
		"coverage", policy.Coverage,
		"premium", policy.Premium,
	)
	return policy, nil
}

// PurchasePolicy sells the policy to the caller. The paid amount must equal
// the premium exactly. The policyholder transition and the escrow credit
// commit as one transaction in the repository, so exactly one of N
// concurrent purchases succeeds and a failed purchase leaves no state.
func (s *PolicyService) PurchasePolicy(ctx context.Context, caller string, policyID int64, paidAmount int64) error {
	if caller == "" {
		return models.ErrUnauthorized
	}

	policy, err := s.policyRepo.GetByIDFresh(ctx, policyID)
	if err != nil {
		return err
	}
	if policy.Purchased() {
		return models.ErrAlreadyPurchased
	}
	if paidAmount != policy.Premium {
		return models.ErrPremiumMismatch
	}

	startDate := s.nowFn()
	if err := s.policyRepo.Purchase(ctx, policyID, caller, startDate, policy.Premium); err != nil {
		return err
	}

	slog.Info("policy purchased",
		"policy_id", policyID,
		"policyholder", caller,
		"premium", paidAmount,
		"start_date", startDate,
	)
	return nil
}

// GetPolicyDetails returns a read-only snapshot of the policy.
func (s *PolicyService) GetPolicyDetails(ctx context.Context, policyID int64) (*models.Policy, error) {
	return s.policyRepo.GetByID(ctx, policyID)
}

// PolicyCount returns the number of policies ever created.
func (s *PolicyService) PolicyCount(ctx context.Context) (int64, error) {
	return s.policyRepo.Count(ctx)
}

// EscrowBalance returns the remaining escrowed funds for a policy.
func (s *PolicyService) EscrowBalance(ctx context.Context, policyID int64) (int64, error) {
	if _, err := s.policyRepo.GetByID(ctx, policyID); err != nil {
		return 0, err
	}
	return s.ledger.Balance(ctx, policyID)
}

// ExpireDuePolicies deactivates active policies whose coverage window has
// elapsed. Claim filing checks the window itself, so correctness does not
// depend on when this sweep runs.
func (s *PolicyService) ExpireDuePolicies(ctx context.Context) (int, error) {
	now := s.nowFn()
	expired, err := s.policyRepo.ListExpiredActive(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired policies: %w", err)
	}

	deactivated := 0
	for _, policy := range expired {
		if err := s.policyRepo.Deactivate(ctx, policy.ID); err != nil {
			slog.Error("failed to deactivate expired policy", "policy_id", policy.ID, "error", err)
			continue
		}
		deactivated++
		slog.Info("policy expired", "policy_id", policy.ID)
	}
	return deactivated, nil
}
