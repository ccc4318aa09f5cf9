package worker

import (
	"context"
	"testing"
	"time"

	"insurance-ledger/internal/models"
	"insurance-ledger/internal/repository"
	"insurance-ledger/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpirySweeper_DeactivatesElapsedPolicies(t *testing.T) {
	escrow := repository.NewMemoryEscrowRepository()
	policyRepo := repository.NewMemoryPolicyRepository(escrow)
	ledger := services.NewLedgerService(escrow)
	policyService := services.NewPolicyService(policyRepo, ledger)

	policy, err := policyService.CreatePolicy(context.Background(), "insurer-1", models.CreatePolicyRequest{
		Coverage: 100, Premium: 10, Duration: 1,
	})
	require.NoError(t, err)
	require.NoError(t, policyService.PurchasePolicy(context.Background(), "holder-1", policy.ID, 10))

	sweeper := NewExpirySweeper(policyService, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sweeper.Run(ctx)
	defer sweeper.Stop()

	// The one-second coverage window elapses, then a tick must pick it up.
	assert.Eventually(t, func() bool {
		got, err := policyService.GetPolicyDetails(context.Background(), policy.ID)
		return err == nil && !got.Active
	}, 5*time.Second, 50*time.Millisecond, "sweeper deactivates the policy after its window elapses")
}

func TestExpirySweeper_StopIsIdempotent(t *testing.T) {
	escrow := repository.NewMemoryEscrowRepository()
	ledger := services.NewLedgerService(escrow)
	policyService := services.NewPolicyService(repository.NewMemoryPolicyRepository(escrow), ledger)

	sweeper := NewExpirySweeper(policyService, time.Hour)
	done := make(chan struct{})
	go func() {
		sweeper.Run(context.Background())
		close(done)
	}()

	sweeper.Stop()
	sweeper.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
