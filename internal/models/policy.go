package models

import "time"

// Policy is an insurance contract offered by an insurer and purchasable by
// exactly one policyholder. Monetary fields are denominated in the smallest
// indivisible unit of the settlement currency; duration and mature_time are
// seconds, start_date is a unix timestamp set once at purchase.
type Policy struct {
	ID           int64     `json:"id" db:"id"`
	Insurer      string    `json:"insurer" db:"insurer"`
	Policyholder *string   `json:"policyholder,omitempty" db:"policyholder"`
	Coverage     int64     `json:"coverage" db:"coverage"`
	Premium      int64     `json:"premium" db:"premium"`
	Duration     int64     `json:"duration" db:"duration"`
	StartDate    *int64    `json:"start_date,omitempty" db:"start_date"`
	MatureTime   int64     `json:"mature_time" db:"mature_time"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Purchased reports whether the policy has been bought. The policyholder
// field transitions from unset to set exactly once.
func (p *Policy) Purchased() bool {
	return p.Policyholder != nil
}

// ClaimWindowOpen reports whether a claim may be filed at the given unix
// time: the policy must be active, mature (start_date + mature_time elapsed)
// and not past its coverage window (start_date + duration).
func (p *Policy) ClaimWindowOpen(now int64) bool {
	if !p.Active || p.StartDate == nil {
		return false
	}
	start := *p.StartDate
	return now >= start+p.MatureTime && now <= start+p.Duration
}

// Expired reports whether the coverage window has elapsed.
func (p *Policy) Expired(now int64) bool {
	return p.StartDate != nil && now > *p.StartDate+p.Duration
}
