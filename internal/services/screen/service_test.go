package screen

import "testing"

func TestContainsLink(t *testing.T) {
	s := NewService(nil)

	cases := []struct {
		text string
		want bool
	}{
		{"", false},
		{"just a normal message", false},
		{"visit https://example.net now", true},
		{"HTTP://EXAMPLE.NET", true},
		{"go to www.example.net", true},
		{"ping @someone", true},
		{"site.ru mirror", true},
		{"shop example.com deals", true},
		{"read example.org tonight", true},
	}

	for _, tc := range cases {
		if got := s.ContainsLink(tc.text); got != tc.want {
			t.Fatalf("ContainsLink(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestContainsBannedWordMatchesWholeWordsAnyCase(t *testing.T) {
	s := NewService([]string{"ban", "casino"})

	cases := []struct {
		text string
		want bool
	}{
		{"", false},
		{"hello ban world", true},
		{"hello BAN world", true},
		{"Casino night", true},
		{"banana bread", false},
		{"urban planning", false},
		{"ban.", true},
	}

	for _, tc := range cases {
		if got := s.ContainsBannedWord(tc.text); got != tc.want {
			t.Fatalf("ContainsBannedWord(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestContainsBannedWordWithEmptyConfig(t *testing.T) {
	s := NewService([]string{"  ", ""})
	if s.ContainsBannedWord("anything at all") {
		t.Fatalf("empty word list must never match")
	}
}
