package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"insurance-ledger/internal/services"
)

// ExpirySweeper periodically deactivates policies whose coverage window has
// elapsed. The sweep is pure bookkeeping: claim filing validates the window
// itself, so a late sweep never lets an expired policy accept claims.
type ExpirySweeper struct {
	policyService *services.PolicyService
	interval      time.Duration
	stopChannel   chan struct{}
	stopOnce      sync.Once
}

func NewExpirySweeper(policyService *services.PolicyService, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		policyService: policyService,
		interval:      interval,
		stopChannel:   make(chan struct{}),
	}
}

// Run blocks, sweeping on every tick until the context is cancelled or Stop
// is called.
func (s *ExpirySweeper) Run(ctx context.Context) {
	slog.Info("policy expiry sweeper running", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			slog.Info("policy expiry sweeper stopped")
			return
		case <-s.stopChannel:
			slog.Info("policy expiry sweeper stopped gracefully")
			return
		}
	}
}

// Stop gracefully stops the sweeper.
func (s *ExpirySweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopChannel) })
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	deactivated, err := s.policyService.ExpireDuePolicies(ctx)
	if err != nil {
		slog.Error("policy expiry sweep failed", "error", err)
		return
	}
	if deactivated > 0 {
		slog.Info("policy expiry sweep completed", "deactivated", deactivated)
	}
}
