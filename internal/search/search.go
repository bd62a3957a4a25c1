// Package search runs web searches against Exa, Tavily or Jina and memoizes
// the results in the shared cache.
package search

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/decision-cli/internal/cost"
	"github.com/sells-group/decision-cli/internal/resilience"
)

// DefaultNumResults is the number of hits requested per query.
const DefaultNumResults = 10

// Result is one search hit.
type Result struct {
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Snippet       string     `json:"snippet"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
}

// Response is the result list of one query and the provider that served it.
type Response struct {
	Results []Result `json:"results"`
	Source  string   `json:"source"`
	// Cost is the provider spend for this call; zero when served from cache.
	Cost   float64 `json:"-"`
	Cached bool    `json:"-"`
}

// Provider is a single search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) (*Response, error)
}

// Option configures a provider adapter.
type Option func(*adapter)

// WithRetry overrides the provider retry schedule.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(a *adapter) {
		a.retry = cfg
	}
}

// WithLimiter paces provider calls.
func WithLimiter(l *resilience.AdaptiveLimiter) Option {
	return func(a *adapter) {
		a.limiter = l
	}
}

// WithCalculator prices each query.
func WithCalculator(calc *cost.Calculator) Option {
	return func(a *adapter) {
		a.calc = calc
	}
}

// WithNumResults overrides DefaultNumResults.
func WithNumResults(n int) Option {
	return func(a *adapter) {
		if n > 0 {
			a.numResults = n
		}
	}
}

// adapter holds the call policy shared by every provider.
type adapter struct {
	name       string
	retry      resilience.RetryConfig
	limiter    *resilience.AdaptiveLimiter
	calc       *cost.Calculator
	numResults int
}

func newAdapter(name string, opts []Option) adapter {
	a := adapter{
		name:       name,
		retry:      resilience.ProviderRetryConfig(name, "search"),
		numResults: DefaultNumResults,
	}
	for _, o := range opts {
		o(&a)
	}
	return a
}

// call runs fn under the retry schedule and the rate limiter.
func call[T any](ctx context.Context, a adapter, fn func(ctx context.Context) (T, error)) (T, error) {
	return resilience.DoVal(ctx, a.retry, func(ctx context.Context) (T, error) {
		return resilience.Paced(ctx, a.limiter, fn)
	})
}

func (a adapter) price() float64 {
	if a.calc == nil {
		return 0
	}
	return a.calc.SearchQuery(a.name)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// parseDate accepts the date shapes the providers return. Unparseable or
// empty values yield nil.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// firstNonEmpty returns the first argument with visible text.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
