package model

import "time"

const (
	DisclosureStatusPending   = "pending"
	DisclosureStatusCompleted = "completed"
)

// Disclosure correlates a payment payload token with the (requester,
// submission) pair it unlocks. Status only ever moves pending -> completed.
type Disclosure struct {
	Payload      string     `json:"payload"`
	RequesterID  int64      `json:"requester_id"`
	SubmissionID int64      `json:"submission_id"`
	Status       string     `json:"status"`
	ChargeID     string     `json:"charge_id"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

func (d Disclosure) Completed() bool {
	return d.Status == DisclosureStatusCompleted
}
