package event

// ClaimFiledEvent is the fact emitted whenever a claim is filed. Observers
// filter on Policyholder. Delivery is at-least-once; EventID lets consumers
// deduplicate.
type ClaimFiledEvent struct {
	EventID      string `json:"event_id"`
	ClaimID      int64  `json:"claim_id"`
	PolicyID     int64  `json:"policy_id"`
	Policyholder string `json:"policyholder"`
	FiledAt      int64  `json:"filed_at"`
}

const ClaimFiledQueue string = "claim_filed_events"
