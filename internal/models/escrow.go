package models

import "time"

// EscrowAccount holds the funds escrowed for one policy: premium received
// minus payouts released. Credited and Debited are lifetime totals kept for
// the solvency check (debited never exceeds credited).
type EscrowAccount struct {
	PolicyID  int64     `json:"policy_id" db:"policy_id"`
	Balance   int64     `json:"balance" db:"balance"`
	Credited  int64     `json:"credited" db:"credited"`
	Debited   int64     `json:"debited" db:"debited"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
