package markup

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Span is one formatting region of a message, offsets in runes the way the
// messaging gateway reports them.
type Span struct {
	Offset int
	Length int
	Kind   string
	URL    string
}

const (
	KindBold          = "bold"
	KindItalic        = "italic"
	KindUnderline     = "underline"
	KindStrikethrough = "strikethrough"
	KindCode          = "code"
	KindPre           = "pre"
	KindTextLink      = "text_link"
)

// RenderHTML converts plain text plus formatting spans into a Telegram HTML
// string. Spans are applied in ascending offset order, ties broken by
// descending length so an outer span is emitted before the span it contains.
// Spans of unknown kind contribute their text unformatted. Text content is
// escaped so sender-authored angle brackets cannot inject tags.
func RenderHTML(text string, spans []Span) string {
	if len(spans) == 0 {
		return html.EscapeString(text)
	}

	runes := []rune(text)

	sorted := make([]Span, len(spans))
	copy(sorted, spans)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Offset != sorted[j].Offset {
			return sorted[i].Offset < sorted[j].Offset
		}
		return sorted[i].Length > sorted[j].Length
	})

	var b strings.Builder
	last := 0

	for _, span := range sorted {
		if span.Offset < 0 || span.Length <= 0 || span.Offset+span.Length > len(runes) {
			continue
		}

		if span.Offset > last {
			b.WriteString(html.EscapeString(string(runes[last:span.Offset])))
		}

		body := html.EscapeString(string(runes[span.Offset : span.Offset+span.Length]))
		b.WriteString(wrap(span, body))

		if end := span.Offset + span.Length; end > last {
			last = end
		}
	}

	if last < len(runes) {
		b.WriteString(html.EscapeString(string(runes[last:])))
	}

	return b.String()
}

func wrap(span Span, body string) string {
	switch span.Kind {
	case KindBold:
		return "<b>" + body + "</b>"
	case KindItalic:
		return "<i>" + body + "</i>"
	case KindUnderline:
		return "<u>" + body + "</u>"
	case KindStrikethrough:
		return "<s>" + body + "</s>"
	case KindCode:
		return "<code>" + body + "</code>"
	case KindPre:
		return "<pre>" + body + "</pre>"
	case KindTextLink:
		return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(span.URL), body)
	default:
		return body
	}
}
