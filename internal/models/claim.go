package models

import "time"

// AdjudicationVerdict is the outcome of reviewing a filed claim.
type AdjudicationVerdict string

const (
	VerdictVerified AdjudicationVerdict = "verified"
	VerdictRejected AdjudicationVerdict = "rejected"
)

// Claim is a payout request filed by a policyholder against a purchased
// policy. The verified/rejected/paid flags form the adjudication state
// machine: at most one of verified/rejected ever becomes true, and paid
// implies verified. Evidence is an opaque reference stored verbatim.
type Claim struct {
	ID            int64      `json:"id" db:"id"`
	PolicyID      int64      `json:"policy_id" db:"policy_id"`
	Policyholder  string     `json:"policyholder" db:"policyholder"`
	Evidence      string     `json:"evidence" db:"evidence"`
	Verified      bool       `json:"verified" db:"verified"`
	Rejected      bool       `json:"rejected" db:"rejected"`
	Paid          bool       `json:"paid" db:"paid"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	AdjudicatedAt *time.Time `json:"adjudicated_at,omitempty" db:"adjudicated_at"`
	PaidAt        *time.Time `json:"paid_at,omitempty" db:"paid_at"`
}

// Adjudicated reports whether the claim has already been verified or
// rejected. Both transitions are one-shot and mutually exclusive.
func (c *Claim) Adjudicated() bool {
	return c.Verified || c.Rejected
}
