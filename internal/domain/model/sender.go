package model

import "time"

// Sender is anyone who has started the bot. The directory doubles as the
// broadcast audience.
type Sender struct {
	ID        int64     `json:"id"`
	Handle    string    `json:"handle"`
	FirstSeen time.Time `json:"first_seen"`
}
