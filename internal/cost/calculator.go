// Package cost attributes provider spend to analysis runs.
package cost

import (
	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/model"
)

// Provider names used for LLM and search pricing lookups.
const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderExa       = "exa"
	ProviderTavily    = "tavily"
	ProviderJina      = "jina"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate
	Gemini    map[string]ModelRate
	Exa       QueryRate
	Tavily    QueryRate
	Jina      JinaRate
	Firecrawl FirecrawlRate
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64
	Output        float64
	CacheWriteMul float64
	CacheReadMul  float64
}

// QueryRate is a flat per-search price.
type QueryRate struct {
	PerQuery float64
}

// JinaRate holds Jina Reader and Search pricing.
type JinaRate struct {
	PerMTok  float64
	PerQuery float64
}

// FirecrawlRate holds Firecrawl pricing.
type FirecrawlRate struct {
	PlanMonthly     float64
	CreditsIncluded float64
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// LLM prices one completion's token usage for the given provider and model.
// Unknown models cost 0.
func (c *Calculator) LLM(provider, modelName string, u model.TokenUsage) float64 {
	var rates map[string]ModelRate
	switch provider {
	case ProviderAnthropic:
		rates = c.rates.Anthropic
	case ProviderGemini:
		rates = c.rates.Gemini
	default:
		return 0
	}
	rate, ok := rates[modelName]
	if !ok {
		return 0
	}
	return tokens(rate, u.InputTokens, u.OutputTokens, u.CacheCreationTokens, u.CacheReadTokens)
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(modelName string, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[modelName]
	if !ok {
		return 0
	}
	return tokens(rate, input, output, cacheWrite, cacheRead)
}

func tokens(rate ModelRate, input, output, cacheWrite, cacheRead int) float64 {
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul
	return inCost + outCost + cwCost + crCost
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// SearchQuery returns the flat cost of one query against the named provider.
func (c *Calculator) SearchQuery(provider string) float64 {
	switch provider {
	case ProviderExa:
		return c.rates.Exa.PerQuery
	case ProviderTavily:
		return c.rates.Tavily.PerQuery
	case ProviderJina:
		return c.rates.Jina.PerQuery
	default:
		return 0
	}
}

// FirecrawlCredit returns the effective price of one scrape credit.
func (c *Calculator) FirecrawlCredit() float64 {
	if c.rates.Firecrawl.CreditsIncluded <= 0 {
		return 0
	}
	return c.rates.Firecrawl.PlanMonthly / c.rates.Firecrawl.CreditsIncluded
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Gemini: map[string]ModelRate{
			"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
			"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
		},
		Exa:       QueryRate{PerQuery: 0.005},
		Tavily:    QueryRate{PerQuery: 0.008},
		Jina:      JinaRate{PerMTok: 0.02, PerQuery: 0.001},
		Firecrawl: FirecrawlRate{PlanMonthly: 19.00, CreditsIncluded: 3000},
	}
}

// RatesFromConfig overlays configured pricing on DefaultRates. Zero values
// in the config keep the default.
func RatesFromConfig(p config.PricingConfig) Rates {
	r := DefaultRates()
	for name, m := range p.Anthropic {
		r.Anthropic[name] = ModelRate(m)
	}
	for name, m := range p.Gemini {
		r.Gemini[name] = ModelRate(m)
	}
	if p.Exa.PerQuery > 0 {
		r.Exa.PerQuery = p.Exa.PerQuery
	}
	if p.Tavily.PerQuery > 0 {
		r.Tavily.PerQuery = p.Tavily.PerQuery
	}
	if p.Jina.PerMTok > 0 {
		r.Jina.PerMTok = p.Jina.PerMTok
	}
	if p.Jina.PerQuery > 0 {
		r.Jina.PerQuery = p.Jina.PerQuery
	}
	if p.Firecrawl.PlanMonthly > 0 {
		r.Firecrawl.PlanMonthly = p.Firecrawl.PlanMonthly
	}
	if p.Firecrawl.CreditsIncluded > 0 {
		r.Firecrawl.CreditsIncluded = p.Firecrawl.CreditsIncluded
	}
	return r
}
