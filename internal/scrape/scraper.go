// Package scrape fetches page text through a fallback chain of scrapers.
package scrape

import (
	"context"
)

// Result is the cleaned text of one page.
type Result struct {
	URL    string
	Title  string
	Text   string
	Source string // e.g. "firecrawl", "jina"
}

// Scraper fetches a single URL. A (nil, nil) return is a permanent miss
// (the page is gone or forbidden); an error means the attempt failed.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	Supports(url string) bool
}
