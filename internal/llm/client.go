package llm

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/cost"
	"github.com/sells-group/decision-cli/internal/resilience"
)

// DefaultTemperature is used when a request does not set one.
const DefaultTemperature = 0.2

// DefaultMaxTokens is used when a request does not set a token budget.
const DefaultMaxTokens = 4096

// Option configures the client.
type Option func(*client)

// WithRetry overrides the provider retry schedule.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

// WithLimiter paces provider calls.
func WithLimiter(l *resilience.AdaptiveLimiter) Option {
	return func(c *client) {
		c.limiter = l
	}
}

// WithCalculator prices each completion's usage.
func WithCalculator(calc *cost.Calculator) Option {
	return func(c *client) {
		c.calc = calc
	}
}

// WithDefaults sets the token budget and temperature used when a request
// leaves them unset.
func WithDefaults(maxTokens int, temperature float64) Option {
	return func(c *client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
		c.temperature = temperature
	}
}

type client struct {
	provider    Provider
	retry       resilience.RetryConfig
	limiter     *resilience.AdaptiveLimiter
	calc        *cost.Calculator
	maxTokens   int
	temperature float64
}

// NewClient creates a JSON completion client over provider.
func NewClient(provider Provider, opts ...Option) Client {
	c := &client{
		provider:    provider,
		retry:       resilience.ProviderRetryConfig(provider.Name(), "generate"),
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CompleteJSON generates, extracts and validates one JSON document. An
// ErrInvalidJSON result is retried once with the identical prompt; schema
// violations and provider errors are returned as-is. The returned
// Completion carries the accumulated usage even on error.
func (c *client) CompleteJSON(ctx context.Context, req Request) (*Completion, error) {
	comp, err := c.attempt(ctx, req)
	if err != nil && errors.Is(err, ErrInvalidJSON) {
		zap.L().Warn("llm: invalid json, retrying once",
			zap.String("operation", req.Operation),
			zap.Error(err),
		)
		first := comp
		comp, err = c.attempt(ctx, req)
		if first != nil && comp != nil {
			comp.Usage.Add(first.Usage)
		} else if comp == nil {
			comp = first
		}
	}
	return comp, err
}

func (c *client) attempt(ctx context.Context, req Request) (*Completion, error) {
	preq := ProviderRequest{
		Tier:        req.Tier,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: c.temperature,
	}
	if preq.Tier == "" {
		preq.Tier = TierFast
	}
	if preq.MaxTokens <= 0 {
		preq.MaxTokens = c.maxTokens
	}
	if req.Temperature != nil {
		preq.Temperature = *req.Temperature
	}

	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*ProviderResponse, error) {
		return resilience.Paced(ctx, c.limiter, func(ctx context.Context) (*ProviderResponse, error) {
			return c.provider.Generate(ctx, preq)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "llm: %s", req.Operation)
	}

	comp := &Completion{
		Provider: c.provider.Name(),
		Model:    resp.Model,
		Usage:    resp.Usage,
	}
	if c.calc != nil {
		comp.Usage.Cost = c.calc.LLM(c.provider.Name(), resp.Model, resp.Usage)
	}

	data := ExtractJSON(resp.Text)
	if err := Validate(req.Schema, []byte(data)); err != nil {
		return comp, eris.Wrapf(err, "llm: %s", req.Operation)
	}
	comp.Data = []byte(data)

	zap.L().Debug("llm: completion",
		zap.String("operation", req.Operation),
		zap.String("model", resp.Model),
		zap.Int("input_tokens", resp.Usage.InputTokens),
		zap.Int("output_tokens", resp.Usage.OutputTokens),
	)
	return comp, nil
}
