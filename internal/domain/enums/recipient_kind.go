package enums

// RecipientKind mirrors the chat type reported by the messaging gateway.
// Only individuals can be banned or unbanned.
type RecipientKind string

const (
	RecipientKindPrivate RecipientKind = "private"
	RecipientKindGroup   RecipientKind = "group"
	RecipientKindChannel RecipientKind = "channel"
)
