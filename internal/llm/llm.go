// Package llm provides schema-validated JSON completions over pluggable
// model providers.
package llm

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/internal/model"
)

// Sentinel errors returned by CompleteJSON.
var (
	// ErrInvalidJSON means the model response could not be decoded as JSON.
	ErrInvalidJSON = eris.New("llm: invalid json")
	// ErrSchemaViolation means the decoded response did not satisfy the schema.
	ErrSchemaViolation = eris.New("llm: schema violation")
)

// Tier selects the model class for a request.
type Tier string

const (
	// TierFast is the cheap model used for extraction and scoring.
	TierFast Tier = "fast"
	// TierStrong is the capable model used for synthesis.
	TierStrong Tier = "strong"
)

// Provider is a single-shot text generation backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req ProviderRequest) (*ProviderResponse, error)
}

// ProviderRequest is one generation call.
type ProviderRequest struct {
	Tier        Tier
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// ProviderResponse is the raw text and token usage of one generation.
type ProviderResponse struct {
	Text  string
	Model string
	Usage model.TokenUsage
}

// Request is a JSON completion request.
type Request struct {
	// Operation names the calling stage in logs and errors.
	Operation   string
	Tier        Tier
	System      string
	Prompt      string
	Schema      Schema
	MaxTokens   int
	Temperature *float64
}

// Completion is a validated JSON response.
type Completion struct {
	Data     json.RawMessage
	Provider string
	Model    string
	Usage    model.TokenUsage
}

// Client produces schema-validated JSON completions.
type Client interface {
	CompleteJSON(ctx context.Context, req Request) (*Completion, error)
}

// Complete runs req and decodes the validated data into T. Usage is
// returned even when decoding fails.
func Complete[T any](ctx context.Context, c Client, req Request) (T, model.TokenUsage, error) {
	var out T
	comp, err := c.CompleteJSON(ctx, req)
	if err != nil {
		var usage model.TokenUsage
		if comp != nil {
			usage = comp.Usage
		}
		return out, usage, err
	}
	if err := json.Unmarshal(comp.Data, &out); err != nil {
		return out, comp.Usage, eris.Wrapf(ErrInvalidJSON, "%s: decode: %v", req.Operation, err)
	}
	return out, comp.Usage, nil
}
