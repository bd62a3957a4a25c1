package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/internal/resilience"
	"github.com/sells-group/decision-cli/pkg/jina"
)

// JinaScraper reads pages through Jina Reader behind a circuit breaker.
// Challenge interstitials count as breaker failures.
type JinaScraper struct {
	client  jina.Client
	breaker *resilience.CircuitBreaker
	link
}

// NewJinaScraper creates the Jina Reader link.
func NewJinaScraper(client jina.Client, breaker resilience.CircuitBreakerConfig, opts ...Option) *JinaScraper {
	return &JinaScraper{
		client:  client,
		breaker: resilience.NewCircuitBreaker(breaker),
		link:    newLink("jina", opts),
	}
}

// Name implements Scraper.
func (j *JinaScraper) Name() string { return j.name }

// Supports reports false while the breaker is open so the chain skips
// straight to the next link.
func (j *JinaScraper) Supports(string) bool {
	return j.breaker.State() != resilience.CircuitOpen
}

// Scrape implements Scraper.
func (j *JinaScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	return resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*Result, error) {
		resp, ok, err := fetch(ctx, j.link, targetURL, func(ctx context.Context) (*jina.ReadResponse, error) {
			return j.client.Read(ctx, targetURL)
		})
		if err != nil {
			return nil, eris.Wrap(err, "scrape: jina")
		}
		if !ok {
			return nil, nil
		}
		if resp.Code != 0 && resp.Code != 200 {
			return nil, eris.Errorf("scrape: jina: upstream code %d", resp.Code)
		}

		text := CleanText(resp.Data.Content)
		if IsChallengeText(text) {
			return nil, eris.New("scrape: jina: challenge or empty page")
		}
		return &Result{
			URL:    targetURL,
			Title:  resp.Data.Title,
			Text:   text,
			Source: j.name,
		}, nil
	})
}
