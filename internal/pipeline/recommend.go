package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

// Recommender picks the primary option and an optional hedge.
type Recommender struct {
	llm llm.Client
}

// NewRecommender creates a Recommender.
func NewRecommender(c llm.Client) *Recommender {
	return &Recommender{llm: c}
}

// Recommend makes a single call over every option, its score and up to six
// of its mappings. The model's primary choice is kept as returned.
func (r *Recommender) Recommend(ctx context.Context, opts []model.Option, scores []model.OptionScore, mappings []model.EvidenceMapping) (*model.Recommendation, model.TokenUsage, error) {
	rec, usage, err := llm.Complete[model.Recommendation](ctx, r.llm, llm.Request{
		Operation: "recommend",
		Tier:      llm.TierStrong,
		System:    jsonOnly,
		Prompt:    recommenderPrompt(opts, scores, mappings),
		Schema:    llm.SchemaRecommendation,
	})
	if err != nil {
		return nil, usage, eris.Wrap(err, "pipeline: recommend")
	}

	if rec.HedgeOptionID != nil && strings.TrimSpace(*rec.HedgeOptionID) == "" {
		rec.HedgeOptionID = nil
	}
	if rec.HedgeOptionID == nil || (rec.HedgeCondition != nil && strings.TrimSpace(*rec.HedgeCondition) == "") {
		rec.HedgeCondition = nil
	}

	known := false
	for _, o := range opts {
		if o.ID == rec.PrimaryOptionID {
			known = true
			break
		}
	}
	if !known {
		zap.L().Warn("pipeline: recommended option is not in the option set",
			zap.String("primary_option_id", rec.PrimaryOptionID),
		)
	}
	return &rec, usage, nil
}
