package llm

import (
	"context"

	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/pkg/gemini"
)

// GeminiProvider generates through the Gemini API in JSON mode.
type GeminiProvider struct {
	client gemini.Client
	models map[Tier]string
}

// NewGeminiProvider maps the fast tier to fastModel and the strong tier to
// strongModel.
func NewGeminiProvider(client gemini.Client, fastModel, strongModel string) *GeminiProvider {
	return &GeminiProvider{
		client: client,
		models: map[Tier]string{TierFast: fastModel, TierStrong: strongModel},
	}
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return "gemini" }

// Generate implements Provider.
func (p *GeminiProvider) Generate(ctx context.Context, req ProviderRequest) (*ProviderResponse, error) {
	modelName := p.models[req.Tier]
	resp, err := p.client.GenerateJSON(ctx, gemini.GenerateRequest{
		Model:       modelName,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   int32(req.MaxTokens), //nolint:gosec
		Temperature: gemini.Float32(float32(req.Temperature)),
	})
	if err != nil {
		return nil, err
	}
	return &ProviderResponse{
		Text:  resp.Text,
		Model: modelName,
		Usage: model.TokenUsage{
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
		},
	}, nil
}
