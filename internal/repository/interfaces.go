package repository

import (
	"context"
	"time"

	"insurance-ledger/internal/models"
)

// PolicyRepository persists policy records. Every mutating method commits as
// one transaction: it either applies completely or leaves no trace.
type PolicyRepository interface {
	// Create assigns the next monotonic ID and stores the policy.
	Create(ctx context.Context, policy *models.Policy) error
	GetByID(ctx context.Context, id int64) (*models.Policy, error)
	// GetByIDFresh reads straight from the store, bypassing any cache layer.
	// Mutating flows use it so decisions never ride a stale snapshot.
	GetByIDFresh(ctx context.Context, id int64) (*models.Policy, error)
	// Purchase sets policyholder, start date and active, and credits the
	// premium into the policy's escrow account, all in one transaction. The
	// policyholder transition is a compare-and-swap, so exactly one of N
	// concurrent purchases succeeds and escrow is credited exactly once.
	// Returns models.ErrNotFound or models.ErrAlreadyPurchased.
	Purchase(ctx context.Context, id int64, policyholder string, startDate int64, premium int64) error
	// Deactivate clears the active flag; used by the expiry sweeper.
	Deactivate(ctx context.Context, id int64) error
	// ListExpiredActive returns active policies whose coverage window has
	// elapsed at the given unix time.
	ListExpiredActive(ctx context.Context, now int64) ([]models.Policy, error)
	Count(ctx context.Context) (int64, error)
}

// ClaimRepository persists claim records. Adjudicate and SettlePayout are
// one-shot conditional transitions; a record that already moved returns the
// matching domain error without being touched again.
type ClaimRepository interface {
	Create(ctx context.Context, claim *models.Claim) error
	GetByID(ctx context.Context, id int64) (*models.Claim, error)
	// GetByIDFresh reads straight from the store, bypassing any cache layer.
	GetByIDFresh(ctx context.Context, id int64) (*models.Claim, error)
	// Adjudicate flips verified or rejected exactly once. Returns
	// models.ErrNotFound or models.ErrAlreadyAdjudicated.
	Adjudicate(ctx context.Context, id int64, verdict models.AdjudicationVerdict, at time.Time) error
	// SettlePayout marks the claim paid and debits amount from the policy's
	// escrow account in one transaction. An under-funded escrow fails with
	// models.ErrInsufficientEscrow and the claim stays unpaid; a claim that
	// already settled returns models.ErrAlreadyPaid (or models.ErrNotVerified
	// when it was never verified) and the escrow is untouched.
	SettlePayout(ctx context.Context, claimID int64, policyID int64, amount int64, at time.Time) error
	Count(ctx context.Context) (int64, error)
}

// EscrowRepository is the fund-custody store. Debit is an atomic
// check-and-decrement: it either reduces the balance or fails with
// models.ErrInsufficientEscrow and no side effect, so the sum of debits for
// a policy can never exceed the sum of credits. The purchase and payout
// transactions apply the same credit and debit statements inside their own
// transaction scope.
type EscrowRepository interface {
	Credit(ctx context.Context, policyID int64, amount int64) error
	Debit(ctx context.Context, policyID int64, amount int64) error
	Balance(ctx context.Context, policyID int64) (int64, error)
	GetAccount(ctx context.Context, policyID int64) (*models.EscrowAccount, error)
}
