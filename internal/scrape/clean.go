package scrape

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy

	spaceRe = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankRe = regexp.MustCompile(`\n{3,}`)
)

func strict() *bluemonday.Policy {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// CleanText strips every HTML element from s, decodes entities and
// collapses runs of spaces and blank lines.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = html.UnescapeString(strict().Sanitize(s))
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// ClipWords keeps the first max words of s. Whitespace inside the kept
// prefix is preserved.
func ClipWords(s string, max int) (string, int) {
	if max <= 0 {
		return s, len(strings.Fields(s))
	}
	words := 0
	inWord := false
	for i, r := range s {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		switch {
		case !space && !inWord:
			if words == max {
				return strings.TrimSpace(s[:i]), max
			}
			words++
			inWord = true
		case space:
			inWord = false
		}
	}
	return s, words
}
