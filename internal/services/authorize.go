package services

import "insurance-ledger/internal/models"

// Action names a capability a caller may hold on a record.
type Action string

const (
	ActionFileClaim  Action = "file_claim"
	ActionAdjudicate Action = "adjudicate"
)

// Authorizer is the capability check applied at the top of every mutating
// operation. Roles are implicit in record fields (insurer, policyholder)
// except for adjudicators, whose identities come from configuration.
type Authorizer struct {
	adjudicators map[string]struct{}
}

func NewAuthorizer(adjudicatorIDs []string) *Authorizer {
	adjudicators := make(map[string]struct{}, len(adjudicatorIDs))
	for _, id := range adjudicatorIDs {
		adjudicators[id] = struct{}{}
	}
	return &Authorizer{adjudicators: adjudicators}
}

// Authorize reports whether caller may perform action against the policy.
// For ActionFileClaim the caller must be the policy's current policyholder;
// for ActionAdjudicate the caller must be a configured adjudicator (the
// policy argument is ignored).
func (a *Authorizer) Authorize(caller string, policy *models.Policy, action Action) bool {
	if caller == "" {
		return false
	}
	switch action {
	case ActionFileClaim:
		return policy != nil && policy.Policyholder != nil && caller == *policy.Policyholder
	case ActionAdjudicate:
		_, ok := a.adjudicators[caller]
		return ok
	}
	return false
}
