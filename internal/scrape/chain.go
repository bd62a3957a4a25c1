package scrape

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Chain tries scrapers in priority order and returns the first result with
// text. A URL that every link misses or fails yields (nil, nil).
type Chain struct {
	PathMatcher *PathMatcher
	scrapers    []Scraper
}

// NewChain creates a Chain. A nil matcher uses the default patterns.
func NewChain(matcher *PathMatcher, scrapers ...Scraper) *Chain {
	if matcher == nil {
		matcher = NewPathMatcher(nil)
	}
	return &Chain{PathMatcher: matcher, scrapers: scrapers}
}

// Links returns the scraper names in order.
func (c *Chain) Links() []string {
	names := make([]string, len(c.scrapers))
	for i, s := range c.scrapers {
		names[i] = s.Name()
	}
	return names
}

// Scrape implements Scraper.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	if c.PathMatcher.IsExcluded(targetURL) {
		zap.L().Debug("scrape: url excluded", zap.String("url", targetURL))
		return nil, nil
	}

	for _, s := range c.scrapers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !s.Supports(targetURL) {
			continue
		}
		result, err := s.Scrape(ctx, targetURL)
		if err != nil {
			zap.L().Debug("scrape: link failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			continue
		}
		if result == nil || strings.TrimSpace(result.Text) == "" {
			continue
		}
		return result, nil
	}

	zap.L().Debug("scrape: every link missed", zap.String("url", targetURL))
	return nil, nil
}

// Name implements Scraper.
func (c *Chain) Name() string { return "chain" }

// Supports implements Scraper.
func (c *Chain) Supports(url string) bool { return !c.PathMatcher.IsExcluded(url) }
