package models

// CreatePolicyRequest is the body of POST /policies. The caller identity
// (insurer) arrives in the X-User-ID header, not the body.
type CreatePolicyRequest struct {
	Coverage   int64 `json:"coverage"`
	Premium    int64 `json:"premium"`
	Duration   int64 `json:"duration"`
	MatureTime int64 `json:"mature_time"`
}

// PurchasePolicyRequest carries the amount the buyer is paying. Purchase
// succeeds only when paid_amount equals the policy premium exactly.
type PurchasePolicyRequest struct {
	PaidAmount int64 `json:"paid_amount"`
}

// FileClaimRequest carries the opaque evidence reference for a new claim.
// The engine stores the reference verbatim and never inspects its contents.
type FileClaimRequest struct {
	PolicyID int64  `json:"policy_id"`
	Evidence string `json:"evidence"`
}
