package scrape

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/resilience"
	"github.com/sells-group/decision-cli/pkg/firecrawl"
	"github.com/sells-group/decision-cli/pkg/jina"
)

// NewChainFromConfig builds the default link order: firecrawl, firecrawl-js,
// jina, then the local readability and browser links when enabled. Jina is
// skipped, with a warning, when no key is configured.
func NewChainFromConfig(cfg *config.Config) (*Chain, error) {
	retry := func(name string) Option {
		return WithRetry(resilience.FromSchedule(name, "scrape", cfg.Retry.DelaysMs))
	}

	fc, err := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: firecrawl client")
	}
	var fcLimiter *resilience.AdaptiveLimiter
	if cfg.Firecrawl.RateLimit > 0 {
		fcLimiter = resilience.NewAdaptiveLimiter("firecrawl", rate.Limit(cfg.Firecrawl.RateLimit), int(cfg.Firecrawl.RateLimit)+1)
	}

	links := []Scraper{
		NewFirecrawlScraper(fc, cfg.Firecrawl.TimeoutMs, retry("firecrawl"), WithLimiter(fcLimiter)),
		NewFirecrawlJSScraper(fc, cfg.Firecrawl.TimeoutMs, retry("firecrawl-js"), WithLimiter(fcLimiter)),
	}

	if cfg.Jina.Key == "" {
		zap.L().Warn("scrape: jina.key not set, chain has no jina link",
			zap.Strings("links", []string{"firecrawl", "firecrawl-js"}),
		)
	} else {
		jc, err := jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.BaseURL))
		if err != nil {
			return nil, eris.Wrap(err, "scrape: jina client")
		}
		var opts []Option
		opts = append(opts, retry("jina"))
		if cfg.Jina.RateLimit > 0 {
			opts = append(opts, WithLimiter(resilience.NewAdaptiveLimiter("jina", rate.Limit(cfg.Jina.RateLimit), int(cfg.Jina.RateLimit)+1)))
		}
		breaker := resilience.FromCircuitConfig("jina", cfg.Jina.BreakerFailures, cfg.Jina.BreakerCooldownSecs)
		links = append(links, NewJinaScraper(jc, breaker, opts...))
	}

	timeout := time.Duration(cfg.Scrape.TimeoutSecs) * time.Second
	if cfg.Scrape.LocalFallback {
		links = append(links, NewReadabilityScraper(timeout, retry("readability")))
	}
	if cfg.Scrape.BrowserFallback {
		links = append(links, NewBrowserScraper(timeout, retry("browser")))
	}

	return NewChain(NewPathMatcher(cfg.Scrape.ExcludePatterns), links...), nil
}
