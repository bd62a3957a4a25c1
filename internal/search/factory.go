package search

import (
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/cost"
	"github.com/sells-group/decision-cli/internal/resilience"
	"github.com/sells-group/decision-cli/pkg/exa"
	"github.com/sells-group/decision-cli/pkg/jina"
	"github.com/sells-group/decision-cli/pkg/tavily"
)

// NewProvider builds the named provider from configuration. An empty name
// returns (nil, nil) so an unset secondary stays unset.
func NewProvider(name string, cfg *config.Config, calc *cost.Calculator) (Provider, error) {
	opts := []Option{
		WithRetry(resilience.FromSchedule(name, "search", cfg.Retry.DelaysMs)),
		WithCalculator(calc),
		WithNumResults(cfg.Search.NumResults),
	}

	switch name {
	case "":
		return nil, nil
	case "exa":
		client, err := exa.NewClient(cfg.Exa.Key, exa.WithBaseURL(cfg.Exa.BaseURL))
		if err != nil {
			return nil, eris.Wrap(err, "search: exa client")
		}
		opts = append(opts, WithLimiter(limiter(name, cfg.Exa.RateLimit)))
		return NewExaProvider(client, opts...), nil
	case "tavily":
		client, err := tavily.NewClient(cfg.Tavily.Key, tavily.WithBaseURL(cfg.Tavily.BaseURL))
		if err != nil {
			return nil, eris.Wrap(err, "search: tavily client")
		}
		opts = append(opts, WithLimiter(limiter(name, cfg.Tavily.RateLimit)))
		return NewTavilyProvider(client, opts...), nil
	case "jina":
		client, err := jina.NewClient(cfg.Jina.Key, jina.WithSearchBaseURL(cfg.Jina.SearchBaseURL))
		if err != nil {
			return nil, eris.Wrap(err, "search: jina client")
		}
		opts = append(opts, WithLimiter(limiter(name, cfg.Jina.RateLimit)))
		return NewJinaProvider(client, opts...), nil
	default:
		return nil, eris.Errorf("search: unknown provider %q", name)
	}
}

func limiter(name string, perSec float64) *resilience.AdaptiveLimiter {
	if perSec <= 0 {
		return nil
	}
	return resilience.NewAdaptiveLimiter(name, rate.Limit(perSec), int(perSec)+1)
}
