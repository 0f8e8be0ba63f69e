package enums

type MediaKind string

const (
	MediaKindNone      MediaKind = ""
	MediaKindPhoto     MediaKind = "photo"
	MediaKindVideo     MediaKind = "video"
	MediaKindAnimation MediaKind = "animation"
	MediaKindDocument  MediaKind = "document"
)
