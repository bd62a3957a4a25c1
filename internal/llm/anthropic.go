package llm

import (
	"context"

	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/pkg/anthropic"
)

// AnthropicProvider generates through the Anthropic Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	models map[Tier]string
}

// NewAnthropicProvider maps the fast tier to fastModel and the strong tier
// to strongModel.
func NewAnthropicProvider(client anthropic.Client, fastModel, strongModel string) *AnthropicProvider {
	return &AnthropicProvider{
		client: client,
		models: map[Tier]string{TierFast: fastModel, TierStrong: strongModel},
	}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Generate implements Provider. The system prompt is sent as a cached block
// so repeated per-item calls reuse it.
func (p *AnthropicProvider) Generate(ctx context.Context, req ProviderRequest) (*ProviderResponse, error) {
	temp := req.Temperature
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.models[req.Tier],
		MaxTokens:   int64(req.MaxTokens),
		System:      anthropic.BuildCachedSystemBlocks(req.System),
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	modelName := resp.Model
	if modelName == "" {
		modelName = p.models[req.Tier]
	}
	return &ProviderResponse{
		Text:  resp.Text(),
		Model: modelName,
		Usage: model.TokenUsage{
			InputTokens:         int(resp.Usage.InputTokens),
			OutputTokens:        int(resp.Usage.OutputTokens),
			CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
		},
	}, nil
}
