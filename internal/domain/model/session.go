package model

import "github.com/ivankudzin/anonrelay/internal/domain/enums"

// Session holds a sender's open conversation flow. Data carries the values
// accumulated so far (ban target, duration, ...). Sessions are ephemeral:
// losing one only forces the sender to restart the flow.
type Session struct {
	SenderID int64              `json:"sender_id"`
	State    enums.SessionState `json:"state"`
	Data     map[string]string  `json:"data"`
}

func (s Session) Value(key string) string {
	if s.Data == nil {
		return ""
	}
	return s.Data[key]
}
