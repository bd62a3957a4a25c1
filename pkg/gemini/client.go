// Package gemini wraps the Google GenAI SDK for JSON-mode completions.
package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/decision-cli/internal/resilience"
)

// Client defines the Gemini operations used by the pipeline.
type Client interface {
	GenerateJSON(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// GenerateRequest is a single JSON-mode generation.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature *float32
}

// GenerateResponse carries the raw model text and token counts.
type GenerateResponse struct {
	Text         string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// Option configures the client.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(cfg *genai.ClientConfig) {
		cfg.HTTPOptions.BaseURL = u
	}
}

type sdkClient struct {
	cli *genai.Client
}

// NewClient creates a Gemini API client.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	if err := resilience.RequireKey("gemini", apiKey); err != nil {
		return nil, err
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, o := range opts {
		o(cfg)
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: new client")
	}
	return &sdkClient{cli: cli}, nil
}

func (c *sdkClient) GenerateJSON(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	gcfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      req.Temperature,
		MaxOutputTokens:  req.MaxTokens,
	}
	if req.System != "" {
		gcfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	resp, err := c.cli.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.Prompt}}}},
		gcfg,
	)
	if err != nil {
		return nil, classify(err)
	}

	out := &GenerateResponse{}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, eris.New("gemini: empty response")
	}
	cand := resp.Candidates[0]
	out.FinishReason = string(cand.FinishReason)

	var b strings.Builder
	for _, p := range cand.Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	out.Text = b.String()
	return out, nil
}

func classify(err error) error {
	wrapped := eris.Wrap(err, "gemini: generate content")

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTPStatus(apiErr.Code, wrapped)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return resilience.ClassifyHTTPStatus(apiErrPtr.Code, wrapped)
	}
	return wrapped
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 {
	return &v
}
