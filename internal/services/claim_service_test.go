package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"insurance-ledger/internal/event"
	"insurance-ledger/internal/models"
	"insurance-ledger/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type capturingPublisher struct {
	mu     sync.Mutex
	events []event.ClaimFiledEvent
	err    error
}

func (p *capturingPublisher) PublishClaimFiled(_ context.Context, evt event.ClaimFiledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func (p *capturingPublisher) published() []event.ClaimFiledEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]event.ClaimFiledEvent(nil), p.events...)
}

type claimFixture struct {
	policyService *PolicyService
	claimService  *ClaimService
	ledger        *LedgerService
	publisher     *capturingPublisher
	now           int64
}

const testAdjudicator = "adjudicator-1"

func newClaimFixture(t *testing.T) *claimFixture {
	t.Helper()

	escrow := repository.NewMemoryEscrowRepository()
	policyRepo := repository.NewMemoryPolicyRepository(escrow)
	claimRepo := repository.NewMemoryClaimRepository(escrow)
	ledger := NewLedgerService(escrow)
	authorizer := NewAuthorizer([]string{testAdjudicator})
	publisher := &capturingPublisher{}

	f := &claimFixture{
		policyService: NewPolicyService(policyRepo, ledger),
		claimService:  NewClaimService(claimRepo, policyRepo, authorizer, publisher),
		ledger:        ledger,
		publisher:     publisher,
		now:           1_000_000,
	}
	nowFn := func() int64 { return f.now }
	f.policyService.nowFn = nowFn
	f.claimService.nowFn = nowFn
	return f
}

// purchasedPolicy creates and immediately purchases a policy so the claim
// window is open (matureTime 0).
func (f *claimFixture) purchasedPolicy(t *testing.T, holder string, coverage, premium int64) *models.Policy {
	t.Helper()
	policy, err := f.policyService.CreatePolicy(context.Background(), "insurer-1", models.CreatePolicyRequest{
		Coverage: coverage,
		Premium:  premium,
		Duration: 3600,
	})
	require.NoError(t, err)
	require.NoError(t, f.policyService.PurchasePolicy(context.Background(), holder, policy.ID, premium))
	return policy
}

func (f *claimFixture) verifiedClaim(t *testing.T, holder string, policyID int64) *models.Claim {
	t.Helper()
	claim, err := f.claimService.FileClaim(context.Background(), holder, policyID, "0xdeadbeef")
	require.NoError(t, err)
	require.NoError(t, f.claimService.VerifyClaim(context.Background(), testAdjudicator, claim.ID))
	return claim
}

// ============================================================================
// TEST SUITE 1: FILING
// ============================================================================

func TestFileClaim_CreatesRecordAndPublishesEvent(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 100, 10)

	claim, err := f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0xfeedface")
	require.NoError(t, err)

	assert.Equal(t, int64(1), claim.ID)
	assert.Equal(t, policy.ID, claim.PolicyID)
	assert.Equal(t, "holder-1", claim.Policyholder)
	assert.False(t, claim.Verified)
	assert.False(t, claim.Rejected)
	assert.False(t, claim.Paid)

	evidence, err := f.claimService.GetClaimEvidence(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, "0xfeedface", evidence, "evidence reference is stored verbatim")

	events := f.publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, claim.ID, events[0].ClaimID)
	assert.Equal(t, policy.ID, events[0].PolicyID)
	assert.Equal(t, "holder-1", events[0].Policyholder)
	assert.NotEmpty(t, events[0].EventID)
}

func TestFileClaim_NonHolderLeavesNoRecord(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 100, 10)

	_, err := f.claimService.FileClaim(context.Background(), "stranger", policy.ID, "0x01")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = f.claimService.FileClaim(context.Background(), "insurer-1", policy.ID, "0x01")
	assert.ErrorIs(t, err, models.ErrUnauthorized, "the insurer is not the policyholder")

	count, err := f.claimService.ClaimCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count, "a rejected filing must leave no claim behind")
	assert.Empty(t, f.publisher.published())
}

func TestFileClaim_UnpurchasedPolicy(t *testing.T) {
	f := newClaimFixture(t)
	policy, err := f.policyService.CreatePolicy(context.Background(), "insurer-1", models.CreatePolicyRequest{
		Coverage: 100, Premium: 10, Duration: 3600,
	})
	require.NoError(t, err)

	_, err = f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestFileClaim_BeforeMaturity(t *testing.T) {
	f := newClaimFixture(t)
	policy, err := f.policyService.CreatePolicy(context.Background(), "insurer-1", models.CreatePolicyRequest{
		Coverage: 100, Premium: 10, Duration: 3600, MatureTime: 600,
	})
	require.NoError(t, err)
	require.NoError(t, f.policyService.PurchasePolicy(context.Background(), "holder-1", policy.ID, 10))

	_, err = f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	assert.ErrorIs(t, err, models.ErrPolicyInactive, "claims are gated until the policy matures")

	f.now += 600
	_, err = f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	assert.NoError(t, err, "the window opens exactly at start+matureTime")
}

func TestFileClaim_AfterCoverageWindow(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 100, 10)

	f.now += 3601
	_, err := f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	assert.ErrorIs(t, err, models.ErrPolicyInactive)
}

func TestFileClaim_PublishFailureDoesNotUndoFiling(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 100, 10)
	f.publisher.err = errors.New("broker down")

	claim, err := f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	require.NoError(t, err)

	got, err := f.claimService.GetClaimStatus(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.Equal(t, claim.ID, got.ID)
}

// ============================================================================
// TEST SUITE 2: ADJUDICATION
// ============================================================================

func TestAdjudication_VerdictIsOneShotAndExclusive(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 100, 10)
	claim, err := f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	require.NoError(t, err)

	require.NoError(t, f.claimService.VerifyClaim(context.Background(), testAdjudicator, claim.ID))

	err = f.claimService.RejectClaim(context.Background(), testAdjudicator, claim.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyAdjudicated, "a verified claim cannot be rejected")

	err = f.claimService.VerifyClaim(context.Background(), testAdjudicator, claim.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyAdjudicated, "verification does not repeat")

	got, err := f.claimService.GetClaimStatus(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.False(t, got.Rejected)
	assert.NotNil(t, got.AdjudicatedAt)
}

func TestAdjudication_RejectThenVerifyFails(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 100, 10)
	claim, err := f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	require.NoError(t, err)

	require.NoError(t, f.claimService.RejectClaim(context.Background(), testAdjudicator, claim.ID))
	assert.ErrorIs(t, f.claimService.VerifyClaim(context.Background(), testAdjudicator, claim.ID), models.ErrAlreadyAdjudicated)

	got, err := f.claimService.GetClaimStatus(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.True(t, got.Rejected)
	assert.False(t, got.Verified)
}

func TestAdjudication_RequiresAdjudicatorRole(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 100, 10)
	claim, err := f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	require.NoError(t, err)

	assert.ErrorIs(t, f.claimService.VerifyClaim(context.Background(), "holder-1", claim.ID), models.ErrUnauthorized)
	assert.ErrorIs(t, f.claimService.RejectClaim(context.Background(), "insurer-1", claim.ID), models.ErrUnauthorized)

	got, err := f.claimService.GetClaimStatus(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.False(t, got.Verified)
	assert.False(t, got.Rejected)
}

func TestAdjudication_ConcurrentVerdictsExactlyOneLands(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 100, 10)
	claim, err := f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var verifyErr, rejectErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		verifyErr = f.claimService.VerifyClaim(context.Background(), testAdjudicator, claim.ID)
	}()
	go func() {
		defer wg.Done()
		rejectErr = f.claimService.RejectClaim(context.Background(), testAdjudicator, claim.ID)
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range []error{verifyErr, rejectErr} {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrAlreadyAdjudicated)
		}
	}
	assert.Equal(t, 1, succeeded)

	got, err := f.claimService.GetClaimStatus(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.NotEqual(t, got.Verified, got.Rejected, "exactly one verdict flag is set")
}

// ============================================================================
// TEST SUITE 3: PAYOUT
// ============================================================================

func TestPayoutClaim_DebitsCoverageAndMarksPaid(t *testing.T) {
	f := newClaimFixture(t)
	// Premium above coverage so escrow can fund the payout.
	policy := f.purchasedPolicy(t, "holder-1", 10, 25)
	claim := f.verifiedClaim(t, "holder-1", policy.ID)

	require.NoError(t, f.claimService.PayoutClaim(context.Background(), claim.ID))

	got, err := f.claimService.GetClaimStatus(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.True(t, got.Paid)
	assert.NotNil(t, got.PaidAt)

	balance, err := f.ledger.Balance(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance, "payout debits exactly the coverage amount")
}

func TestPayoutClaim_InsufficientEscrowLeavesClaimUnpaid(t *testing.T) {
	f := newClaimFixture(t)
	// Coverage 10 against an escrow of only 2.
	policy := f.purchasedPolicy(t, "holder-1", 10, 2)
	claim := f.verifiedClaim(t, "holder-1", policy.ID)

	err := f.claimService.PayoutClaim(context.Background(), claim.ID)
	assert.ErrorIs(t, err, models.ErrInsufficientEscrow)

	got, err := f.claimService.GetClaimStatus(context.Background(), claim.ID)
	require.NoError(t, err)
	assert.False(t, got.Paid, "a failed payout must not mark the claim paid")

	balance, err := f.ledger.Balance(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), balance, "a failed payout must not move funds")
}

func TestPayoutClaim_RejectedClaimNeverPays(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 10, 25)
	claim, err := f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	require.NoError(t, err)
	require.NoError(t, f.claimService.RejectClaim(context.Background(), testAdjudicator, claim.ID))

	err = f.claimService.PayoutClaim(context.Background(), claim.ID)
	assert.ErrorIs(t, err, models.ErrNotVerified)

	balance, err := f.ledger.Balance(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)
}

func TestPayoutClaim_UnadjudicatedClaimNeverPays(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 10, 25)
	claim, err := f.claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	require.NoError(t, err)

	assert.ErrorIs(t, f.claimService.PayoutClaim(context.Background(), claim.ID), models.ErrNotVerified)
}

func TestPayoutClaim_SecondPayoutFailsWithSingleDebit(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 10, 25)
	claim := f.verifiedClaim(t, "holder-1", policy.ID)

	require.NoError(t, f.claimService.PayoutClaim(context.Background(), claim.ID))
	assert.ErrorIs(t, f.claimService.PayoutClaim(context.Background(), claim.ID), models.ErrAlreadyPaid)

	balance, err := f.ledger.Balance(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance, "the coverage is debited exactly once")
}

func TestPayoutClaim_ConcurrentPayoutsOneNetDebit(t *testing.T) {
	f := newClaimFixture(t)
	policy := f.purchasedPolicy(t, "holder-1", 10, 200)
	claim := f.verifiedClaim(t, "holder-1", policy.ID)

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = f.claimService.PayoutClaim(context.Background(), claim.ID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrAlreadyPaid)
		}
	}
	assert.Equal(t, 1, succeeded, "concurrent payouts of one claim settle exactly once")

	balance, err := f.ledger.Balance(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(190), balance, "the coverage is debited exactly once")
}

func TestPayoutClaim_CompetingClaimsBoundedByEscrow(t *testing.T) {
	f := newClaimFixture(t)
	// Escrow of 15 funds only one payout of coverage 10.
	policy := f.purchasedPolicy(t, "holder-1", 10, 15)
	first := f.verifiedClaim(t, "holder-1", policy.ID)
	second := f.verifiedClaim(t, "holder-1", policy.ID)

	var wg sync.WaitGroup
	var firstErr, secondErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		firstErr = f.claimService.PayoutClaim(context.Background(), first.ID)
	}()
	go func() {
		defer wg.Done()
		secondErr = f.claimService.PayoutClaim(context.Background(), second.ID)
	}()
	wg.Wait()

	succeeded := 0
	for _, err := range []error{firstErr, secondErr} {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInsufficientEscrow)
		}
	}
	assert.Equal(t, 1, succeeded, "combined coverage exceeds escrow, exactly one payout lands")

	balance, err := f.ledger.Balance(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)
}

func TestPayoutClaim_UnknownClaim(t *testing.T) {
	f := newClaimFixture(t)
	assert.ErrorIs(t, f.claimService.PayoutClaim(context.Background(), 42), models.ErrNotFound)
}

// ============================================================================
// TEST SUITE 4: READ FRESHNESS
// ============================================================================

// stalePolicyRepo serves GetByID from an outdated snapshot, the way a cache
// entry written just before a purchase would look. GetByIDFresh returns the
// current record.
type stalePolicyRepo struct {
	*repository.MemoryPolicyRepository
}

func (r *stalePolicyRepo) GetByID(ctx context.Context, id int64) (*models.Policy, error) {
	policy, err := r.MemoryPolicyRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stale := *policy
	stale.Policyholder = nil
	stale.StartDate = nil
	stale.Active = false
	return &stale, nil
}

// staleClaimRepo serves GetByID from a snapshot taken before adjudication.
type staleClaimRepo struct {
	*repository.MemoryClaimRepository
}

func (r *staleClaimRepo) GetByID(ctx context.Context, id int64) (*models.Claim, error) {
	claim, err := r.MemoryClaimRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	stale := *claim
	stale.Verified = false
	stale.AdjudicatedAt = nil
	return &stale, nil
}

func TestFileClaim_DecidesOnCurrentPolicyNotCachedSnapshot(t *testing.T) {
	escrow := repository.NewMemoryEscrowRepository()
	policyRepo := &stalePolicyRepo{repository.NewMemoryPolicyRepository(escrow)}
	ledger := NewLedgerService(escrow)
	policyService := NewPolicyService(policyRepo, ledger)
	claimService := NewClaimService(
		repository.NewMemoryClaimRepository(escrow),
		policyRepo,
		NewAuthorizer([]string{testAdjudicator}),
		nil,
	)

	policy, err := policyService.CreatePolicy(context.Background(), "insurer-1", models.CreatePolicyRequest{
		Coverage: 100, Premium: 10, Duration: 3600,
	})
	require.NoError(t, err)
	require.NoError(t, policyService.PurchasePolicy(context.Background(), "holder-1", policy.ID, 10))

	_, err = claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	assert.NoError(t, err, "filing decides on the stored policy, not an outdated snapshot")
}

func TestPayoutClaim_DecidesOnCurrentClaimNotCachedSnapshot(t *testing.T) {
	escrow := repository.NewMemoryEscrowRepository()
	policyRepo := repository.NewMemoryPolicyRepository(escrow)
	claimRepo := &staleClaimRepo{repository.NewMemoryClaimRepository(escrow)}
	ledger := NewLedgerService(escrow)
	policyService := NewPolicyService(policyRepo, ledger)
	claimService := NewClaimService(claimRepo, policyRepo, NewAuthorizer([]string{testAdjudicator}), nil)

	policy, err := policyService.CreatePolicy(context.Background(), "insurer-1", models.CreatePolicyRequest{
		Coverage: 10, Premium: 25, Duration: 3600,
	})
	require.NoError(t, err)
	require.NoError(t, policyService.PurchasePolicy(context.Background(), "holder-1", policy.ID, 25))

	claim, err := claimService.FileClaim(context.Background(), "holder-1", policy.ID, "0x01")
	require.NoError(t, err)
	require.NoError(t, claimService.VerifyClaim(context.Background(), testAdjudicator, claim.ID))

	err = claimService.PayoutClaim(context.Background(), claim.ID)
	assert.NoError(t, err, "payout decides on the stored claim, not an outdated snapshot")

	balance, err := ledger.Balance(context.Background(), policy.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15), balance)
}
