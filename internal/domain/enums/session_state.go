package enums

// SessionState is the position of a sender inside a multi-step conversation
// flow. The empty value means no flow is open.
type SessionState string

const (
	SessionIdle              SessionState = ""
	SessionAwaitingMessage   SessionState = "awaiting_message"
	SessionAwaitingAuthorNum SessionState = "awaiting_author_number"
	SessionAdminBanTarget    SessionState = "admin_ban_target"
	SessionAdminBanDuration  SessionState = "admin_ban_duration"
	SessionAdminBanReason    SessionState = "admin_ban_reason"
	SessionAdminUnbanTarget  SessionState = "admin_unban_target"
	SessionAdminBroadcast    SessionState = "admin_broadcast"
)
