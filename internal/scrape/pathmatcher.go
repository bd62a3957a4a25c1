package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns skip downloads and account pages that never yield
// readable article text.
var defaultExcludePatterns = []string{
	"*.pdf",
	"*.zip",
	"*.xlsx",
	"*.pptx",
	"*.docx",
	"*.mp3",
	"*.mp4",
	"*.png",
	"*.jpg",
	"/login/*",
	"/signin/*",
	"/cart/*",
}

// PathMatcher filters URLs by glob patterns. Patterns starting with "/"
// match the path ("/login/*" also matches deeper paths); other patterns
// match the last path segment.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher. An empty list uses the defaults.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	lowered := make([]string, len(patterns))
	for i, p := range patterns {
		lowered[i] = strings.ToLower(p)
	}
	return &PathMatcher{patterns: lowered}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether rawURL matches an exclude pattern. Unparseable
// and non-HTTP URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return true
	}
	p := strings.ToLower(u.Path)
	base := path.Base(p)
	for _, pattern := range m.patterns {
		if strings.HasPrefix(pattern, "/") {
			if matchSegmented(pattern, p) {
				return true
			}
			continue
		}
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// matchSegmented is path.Match plus prefix matching for "/dir/*" patterns.
func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}
	return false
}
