package model

import "time"

// Ban is the single active ban row of a sender. Until == nil means the ban
// is permanent. A row whose Until is in the past is logically inactive and
// is purged by whichever observer sees it first.
type Ban struct {
	SenderID  int64      `json:"sender_id"`
	Until     *time.Time `json:"until"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"created_at"`
}

func (b Ban) Permanent() bool {
	return b.Until == nil
}

func (b Ban) ActiveAt(now time.Time) bool {
	return b.Until == nil || now.Before(*b.Until)
}
