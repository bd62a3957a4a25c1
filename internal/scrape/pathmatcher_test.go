package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathMatcher_IsExcluded(t *testing.T) {
	t.Parallel()
	m := NewPathMatcher([]string{"/login/*", "*.pdf", "/Cart/*"})

	tests := []struct {
		name     string
		url      string
		excluded bool
	}{
		{"login root", "https://acme.com/login", true},
		{"login deep", "https://acme.com/login/sso/callback", true},
		{"cart mixed case pattern", "https://acme.com/cart/items", true},
		{"root pdf", "https://acme.com/report.pdf", true},
		{"nested pdf", "https://acme.com/docs/2026/Report.PDF", true},
		{"article", "https://acme.com/insights/ev-charging", false},
		{"homepage", "https://acme.com/", false},
		{"pdf in query only", "https://acme.com/view?file=a.pdf", false},
		{"ftp scheme", "ftp://acme.com/file", true},
		{"no host", "https:///path", true},
		{"invalid", "://invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.excluded, m.IsExcluded(tt.url))
		})
	}
}

func TestPathMatcher_DefaultPatterns(t *testing.T) {
	m := NewPathMatcher(nil)

	assert.True(t, m.IsExcluded("https://acme.com/whitepaper.pdf"))
	assert.True(t, m.IsExcluded("https://acme.com/signin/start"))
	assert.True(t, m.IsExcluded("https://cdn.acme.com/img/chart.png"))
	assert.False(t, m.IsExcluded("https://acme.com/blog/market-sizing"))
	assert.Len(t, m.Patterns(), len(defaultExcludePatterns))
}
