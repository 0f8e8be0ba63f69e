package markup

import "testing"

func TestRenderHTMLNoSpans(t *testing.T) {
	if got := RenderHTML("plain text", nil); got != "plain text" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderHTMLWrapsKnownKinds(t *testing.T) {
	cases := []struct {
		name string
		text string
		span Span
		want string
	}{
		{"bold", "hello world", Span{Offset: 0, Length: 5, Kind: KindBold}, "<b>hello</b> world"},
		{"italic", "hello world", Span{Offset: 6, Length: 5, Kind: KindItalic}, "hello <i>world</i>"},
		{"underline", "ab", Span{Offset: 0, Length: 2, Kind: KindUnderline}, "<u>ab</u>"},
		{"strikethrough", "ab", Span{Offset: 0, Length: 2, Kind: KindStrikethrough}, "<s>ab</s>"},
		{"code", "x := 1", Span{Offset: 0, Length: 6, Kind: KindCode}, "<code>x := 1</code>"},
		{"pre", "block", Span{Offset: 0, Length: 5, Kind: KindPre}, "<pre>block</pre>"},
		{
			"text_link", "see docs", Span{Offset: 4, Length: 4, Kind: KindTextLink, URL: "https://example.com"},
			`see <a href="https://example.com">docs</a>`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RenderHTML(tc.text, []Span{tc.span}); got != tc.want {
				t.Fatalf("unexpected render: %q", got)
			}
		})
	}
}

func TestRenderHTMLUnknownKindPassesThrough(t *testing.T) {
	got := RenderHTML("call @someone now", []Span{{Offset: 5, Length: 8, Kind: "mention"}})
	if got != "call @someone now" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderHTMLOrdersByOffsetThenLength(t *testing.T) {
	// Two spans starting at the same offset: the longer one must be emitted
	// first so the outer tag opens before the inner text is consumed.
	got := RenderHTML("abcdef", []Span{
		{Offset: 0, Length: 3, Kind: KindItalic},
		{Offset: 0, Length: 6, Kind: KindBold},
	})
	if got != "<b>abcdef</b><i>abc</i>" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderHTMLMultipleDisjointSpans(t *testing.T) {
	got := RenderHTML("one two three", []Span{
		{Offset: 0, Length: 3, Kind: KindBold},
		{Offset: 8, Length: 5, Kind: KindItalic},
	})
	if got != "<b>one</b> two <i>three</i>" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderHTMLSkipsOutOfRangeSpans(t *testing.T) {
	got := RenderHTML("short", []Span{{Offset: 3, Length: 10, Kind: KindBold}})
	if got != "short" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderHTMLEscapesSenderText(t *testing.T) {
	got := RenderHTML("a <b> & c", []Span{{Offset: 0, Length: 1, Kind: KindBold}})
	if got != "<b>a</b> &lt;b&gt; &amp; c" {
		t.Fatalf("unexpected render: %q", got)
	}

	if got := RenderHTML("1 < 2", nil); got != "1 &lt; 2" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderHTMLCountsRunesNotBytes(t *testing.T) {
	got := RenderHTML("привет мир", []Span{{Offset: 7, Length: 3, Kind: KindBold}})
	if got != "привет <b>мир</b>" {
		t.Fatalf("unexpected render: %q", got)
	}
}
