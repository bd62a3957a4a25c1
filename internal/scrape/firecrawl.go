package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/pkg/firecrawl"
)

// FirecrawlScraper scrapes through the Firecrawl API. The JS variant asks
// Firecrawl to wait for client-side rendering before capturing.
type FirecrawlScraper struct {
	client  firecrawl.Client
	waitFor int
	timeout int
	link
}

// NewFirecrawlScraper creates the plain Firecrawl link.
func NewFirecrawlScraper(client firecrawl.Client, timeoutMs int, opts ...Option) *FirecrawlScraper {
	return &FirecrawlScraper{client: client, timeout: timeoutMs, link: newLink("firecrawl", opts)}
}

// NewFirecrawlJSScraper creates the JavaScript-rendering Firecrawl link.
func NewFirecrawlJSScraper(client firecrawl.Client, timeoutMs int, opts ...Option) *FirecrawlScraper {
	return &FirecrawlScraper{
		client:  client,
		waitFor: firecrawl.JSWaitMs,
		timeout: timeoutMs,
		link:    newLink("firecrawl-js", opts),
	}
}

// Name implements Scraper.
func (f *FirecrawlScraper) Name() string { return f.name }

// Supports implements Scraper; Firecrawl attempts any URL.
func (f *FirecrawlScraper) Supports(string) bool { return true }

// Scrape implements Scraper.
func (f *FirecrawlScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	resp, ok, err := fetch(ctx, f.link, targetURL, func(ctx context.Context) (*firecrawl.ScrapeResponse, error) {
		return f.client.Scrape(ctx, firecrawl.ScrapeRequest{
			URL:             targetURL,
			Formats:         []string{"markdown"},
			OnlyMainContent: true,
			Timeout:         f.timeout,
			WaitFor:         f.waitFor,
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: %s", f.name)
	}
	if !ok {
		return nil, nil
	}
	if !resp.Success {
		return nil, eris.Errorf("scrape: %s: unsuccessful: %s", f.name, resp.Error)
	}

	status := resp.Data.Metadata.StatusCode
	if status == 400 || status == 401 || status == 403 || status == 404 {
		return nil, nil
	}

	text := CleanText(resp.Data.Markdown)
	if text == "" {
		return nil, eris.Errorf("scrape: %s: empty content", f.name)
	}
	return &Result{
		URL:    targetURL,
		Title:  resp.Data.Metadata.Title,
		Text:   text,
		Source: f.name,
	}, nil
}
