package scrape

import (
	"strings"

	"github.com/sells-group/decision-cli/internal/resilience"
)

func noSleep() Option {
	cfg := resilience.ProviderRetryConfig("test", "scrape")
	cfg.Sleep = resilience.NoSleep
	return WithRetry(cfg)
}

var articleBody = strings.Repeat("Utility-scale storage deployments doubled in 2025 across three regions. ", 4)
