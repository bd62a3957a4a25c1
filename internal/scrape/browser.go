package scrape

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/internal/resilience"
)

// BrowserScraper renders pages in headless Chrome and extracts the article
// with go-readability. It is the last resort for script-heavy pages.
type BrowserScraper struct {
	timeout   time.Duration
	allocOpts []chromedp.ExecAllocatorOption
	render    func(ctx context.Context, url string) (string, error)
	link
}

// NewBrowserScraper creates the headless browser link.
func NewBrowserScraper(timeout time.Duration, opts ...Option) *BrowserScraper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b := &BrowserScraper{
		timeout: timeout,
		allocOpts: append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.UserAgent(userAgent),
		),
		link: newLink("browser", opts),
	}
	b.render = b.renderChrome
	return b
}

// Name implements Scraper.
func (b *BrowserScraper) Name() string { return b.name }

// Supports implements Scraper.
func (b *BrowserScraper) Supports(string) bool { return true }

// Scrape implements Scraper.
func (b *BrowserScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	html, ok, err := fetch(ctx, b.link, targetURL, func(ctx context.Context) (string, error) {
		return b.render(ctx, targetURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "scrape: browser")
	}
	if !ok {
		return nil, nil
	}
	return articleResult([]byte(html), targetURL, b.name)
}

func (b *BrowserScraper) renderChrome(ctx context.Context, targetURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, b.allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", resilience.NewTransientError(eris.Wrap(err, "render"), 0)
	}
	return html, nil
}
