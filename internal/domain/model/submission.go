package model

import "time"

// Submission is one relayed anonymous message. Rows are append-only: the id
// is the public number readers use to request disclosure, so it is never
// reused and the row is never updated.
type Submission struct {
	ID           int64     `json:"id"`
	SenderID     int64     `json:"sender_id"`
	SenderHandle string    `json:"sender_handle"`
	Text         string    `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
}
