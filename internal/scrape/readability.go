package scrape

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/internal/resilience"
)

// userAgent identifies the local fetchers.
const userAgent = "Mozilla/5.0 (compatible; DecisionBot/1.0)"

// maxBodyBytes caps how much HTML a local fetch reads.
const maxBodyBytes = 2 << 20

// ReadabilityScraper fetches HTML directly and extracts the main article
// with go-readability. No API calls; blocked pages fall through.
type ReadabilityScraper struct {
	client *http.Client
	link
}

// NewReadabilityScraper creates the local HTTP link.
func NewReadabilityScraper(timeout time.Duration, opts ...Option) *ReadabilityScraper {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ReadabilityScraper{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		link: newLink("readability", opts),
	}
}

// Name implements Scraper.
func (r *ReadabilityScraper) Name() string { return r.name }

// Supports implements Scraper.
func (r *ReadabilityScraper) Supports(string) bool { return true }

// Scrape implements Scraper.
func (r *ReadabilityScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	body, ok, err := fetch(ctx, r.link, targetURL, func(ctx context.Context) ([]byte, error) {
		return r.get(ctx, targetURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "scrape: readability")
	}
	if !ok {
		return nil, nil
	}
	return articleResult(body, targetURL, r.name)
}

func (r *ReadabilityScraper) get(ctx context.Context, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, resilience.NewPermanentError(eris.Wrap(err, "create request"), 0)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "fetch"), 0)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), resp.StatusCode)
	}

	if bt := DetectBlock(resp, body); bt != BlockNone {
		return nil, eris.Errorf("blocked (%s)", bt)
	}
	if resp.StatusCode >= 300 {
		return nil, resilience.ClassifyHTTPStatus(resp.StatusCode, eris.Errorf("status %d", resp.StatusCode))
	}
	return body, nil
}

// articleResult runs readability over raw HTML.
func articleResult(html []byte, targetURL, source string) (*Result, error) {
	pageURL, err := url.Parse(targetURL)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse url")
	}
	article, err := readability.FromReader(bytes.NewReader(html), pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: %s: extract article", source)
	}
	text := CleanText(article.TextContent)
	if IsChallengeText(text) {
		return nil, eris.Errorf("scrape: %s: challenge or empty page", source)
	}
	return &Result{
		URL:    targetURL,
		Title:  CleanText(article.Title),
		Text:   text,
		Source: source,
	}, nil
}
