package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"insurance-ledger/internal/event"
	"insurance-ledger/internal/models"
	"insurance-ledger/internal/repository"

	"github.com/google/uuid"
)

// ClaimEventPublisher emits ClaimFiled facts to the notification channel.
// Delivery beyond the queue is the notification collaborator's concern.
type ClaimEventPublisher interface {
	PublishClaimFiled(ctx context.Context, event event.ClaimFiledEvent) error
}

// ClaimService is the claim registry: it accepts claims from policyholders,
// adjudicates them (verify/reject, once, mutually exclusive) and settles
// verified claims against the ledger's escrow.
type ClaimService struct {
	claimRepo  repository.ClaimRepository
	policyRepo repository.PolicyRepository
	authorizer *Authorizer
	publisher  ClaimEventPublisher
	nowFn      func() int64
}

func NewClaimService(
	claimRepo repository.ClaimRepository,
	policyRepo repository.PolicyRepository,
	authorizer *Authorizer,
	publisher ClaimEventPublisher,
) *ClaimService {
	return &ClaimService{
		claimRepo:  claimRepo,
		policyRepo: policyRepo,
		authorizer: authorizer,
		publisher:  publisher,
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// FileClaim creates a claim against a purchased, active, mature policy.
// Only the policy's current policyholder may file; the evidence reference is
// stored verbatim. A ClaimFiled event is published for the policyholder.
func (s *ClaimService) FileClaim(ctx context.Context, caller string, policyID int64, evidence string) (*models.Claim, error) {
	policy, err := s.policyRepo.GetByIDFresh(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if !s.authorizer.Authorize(caller, policy, ActionFileClaim) {
		return nil, models.ErrUnauthorized
	}
	if !policy.ClaimWindowOpen(s.nowFn()) {
		return nil, models.ErrPolicyInactive
	}

	claim := &models.Claim{
		PolicyID:     policyID,
		Policyholder: caller,
		Evidence:     evidence,
	}
	if err := s.claimRepo.Create(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}

	slog.Info("claim filed", "claim_id", claim.ID, "policy_id", policyID, "policyholder", caller)
	s.publishClaimFiled(ctx, claim)

	return claim, nil
}

// publishClaimFiled emits the ClaimFiled fact. A publish failure is logged
// and does not undo the filing; the claim record remains the source of truth.
func (s *ClaimService) publishClaimFiled(ctx context.Context, claim *models.Claim) {
	if s.publisher == nil {
		return
	}
	filedEvent := event.ClaimFiledEvent{
		EventID:      uuid.NewString(),
		ClaimID:      claim.ID,
		PolicyID:     claim.PolicyID,
		Policyholder: claim.Policyholder,
		FiledAt:      s.nowFn(),
	}
	if err := s.publisher.PublishClaimFiled(ctx, filedEvent); err != nil {
		slog.Error("failed to publish claim filed event", "claim_id", claim.ID, "error", err)
	}
}

// GetClaimStatus returns a read-only snapshot of the claim.
func (s *ClaimService) GetClaimStatus(ctx context.Context, claimID int64) (*models.Claim, error) {
	return s.claimRepo.GetByID(ctx, claimID)
}

// GetClaimEvidence returns the stored evidence reference.
func (s *ClaimService) GetClaimEvidence(ctx context.Context, claimID int64) (string, error) {
	claim, err := s.claimRepo.GetByID(ctx, claimID)
	if err != nil {
		return "", err
	}
	return claim.Evidence, nil
}

// ClaimCount returns the number of claims ever filed.
func (s *ClaimService) ClaimCount(ctx context.Context) (int64, error) {
	return s.claimRepo.Count(ctx)
}

// VerifyClaim marks a claim verified. Adjudicator-only; one-shot and
// mutually exclusive with rejection.
func (s *ClaimService) VerifyClaim(ctx context.Context, caller string, claimID int64) error {
	return s.adjudicate(ctx, caller, claimID, models.VerdictVerified)
}

// RejectClaim marks a claim rejected. Adjudicator-only; one-shot and
// mutually exclusive with verification.
func (s *ClaimService) RejectClaim(ctx context.Context, caller string, claimID int64) error {
	return s.adjudicate(ctx, caller, claimID, models.VerdictRejected)
}

func (s *ClaimService) adjudicate(ctx context.Context, caller string, claimID int64, verdict models.AdjudicationVerdict) error {
	if !s.authorizer.Authorize(caller, nil, ActionAdjudicate) {
		return models.ErrUnauthorized
	}
	if err := s.claimRepo.Adjudicate(ctx, claimID, verdict, time.Now()); err != nil {
		return err
	}

	slog.Info("claim adjudicated", "claim_id", claimID, "verdict", verdict, "adjudicator", caller)
	return nil
}

// PayoutClaim settles a verified claim: the policy's coverage is debited
// from escrow and sent to the claim's policyholder, and the claim becomes
// terminally paid. The debit and the paid transition commit as one
// transaction in the repository, so an under-funded escrow fails with
// ErrInsufficientEscrow without touching the paid flag, and funds move
// exactly once no matter how many payouts race.
func (s *ClaimService) PayoutClaim(ctx context.Context, claimID int64) error {
	claim, err := s.claimRepo.GetByIDFresh(ctx, claimID)
	if err != nil {
		return err
	}
	if claim.Paid {
		return models.ErrAlreadyPaid
	}
	if !claim.Verified || claim.Rejected {
		return models.ErrNotVerified
	}

	policy, err := s.policyRepo.GetByIDFresh(ctx, claim.PolicyID)
	if err != nil {
		return fmt.Errorf("failed to load policy for claim %d: %w", claimID, err)
	}
	amount := policy.Coverage

	if err := s.claimRepo.SettlePayout(ctx, claimID, claim.PolicyID, amount, time.Now()); err != nil {
		return err
	}

	slog.Info("claim paid out",
		"claim_id", claimID,
		"policy_id", claim.PolicyID,
		"recipient", claim.Policyholder,
		"amount", amount,
	)
	return nil
}
