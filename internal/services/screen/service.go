package screen

import (
	"regexp"
	"strings"
)

var linkPattern = regexp.MustCompile(`(?i)(https?://|www\.|@|\.ru|\.com|\.org)`)

// Service classifies submission text against the content policy. All checks
// are pure; empty text never matches anything.
type Service struct {
	wordPattern *regexp.Regexp
}

func NewService(banWords []string) *Service {
	return &Service{wordPattern: compileWordPattern(banWords)}
}

func (s *Service) ContainsLink(text string) bool {
	if text == "" {
		return false
	}
	return linkPattern.MatchString(text)
}

func (s *Service) ContainsBannedWord(text string) bool {
	if text == "" || s.wordPattern == nil {
		return false
	}
	return s.wordPattern.MatchString(text)
}

func compileWordPattern(words []string) *regexp.Regexp {
	escaped := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.TrimSpace(word)
		if word == "" {
			continue
		}
		escaped = append(escaped, regexp.QuoteMeta(word))
	}
	if len(escaped) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(escaped, "|") + `)\b`)
}
