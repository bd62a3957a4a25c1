package scrape

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/resilience"
)

// Option configures a scraper link.
type Option func(*link)

// WithRetry overrides the provider retry schedule.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(l *link) {
		l.retry = cfg
	}
}

// WithLimiter paces calls to the link's upstream.
func WithLimiter(lim *resilience.AdaptiveLimiter) Option {
	return func(l *link) {
		l.limiter = lim
	}
}

// link is the call policy shared by every scraper.
type link struct {
	name    string
	retry   resilience.RetryConfig
	limiter *resilience.AdaptiveLimiter
}

func newLink(name string, opts []Option) link {
	l := link{name: name, retry: resilience.ProviderRetryConfig(name, "scrape")}
	for _, o := range opts {
		o(&l)
	}
	return l
}

// fetch runs fn with retries on transient errors. A permanent error is
// reported as a miss: (zero, false, nil).
func fetch[T any](ctx context.Context, l link, url string, fn func(ctx context.Context) (T, error)) (T, bool, error) {
	val, err := resilience.DoVal(ctx, l.retry, func(ctx context.Context) (T, error) {
		return resilience.Paced(ctx, l.limiter, fn)
	})
	if err != nil {
		if resilience.IsPermanent(err) {
			zap.L().Debug("scrape: permanent miss",
				zap.String("scraper", l.name),
				zap.String("url", url),
				zap.Int("status", resilience.StatusCode(err)),
			)
			var zero T
			return zero, false, nil
		}
		var zero T
		return zero, false, err
	}
	return val, true, nil
}
