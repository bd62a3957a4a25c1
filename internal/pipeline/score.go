package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

type factorDraft struct {
	model.ScoreFactors
	ScoreRationale string `json:"scoreRationale"`
}

// Scorer rates every option on six weighted factors.
type Scorer struct {
	llm         llm.Client
	concurrency int
}

// NewScorer creates a Scorer.
func NewScorer(c llm.Client, concurrency int) *Scorer {
	if concurrency <= 0 {
		concurrency = DefaultOptionConcurrency
	}
	return &Scorer{llm: c, concurrency: concurrency}
}

// Score makes one call per option with that option's mappings. The total
// is computed locally from the factors.
func (s *Scorer) Score(ctx context.Context, opts []model.Option, mappings []model.EvidenceMapping, evidence []model.EvidenceCard) ([]model.OptionScore, model.TokenUsage, error) {
	byID := model.EvidenceByID(evidence)
	scores := make([]model.OptionScore, len(opts))
	var (
		mu    sync.Mutex
		total model.TokenUsage
	)

	err := forEachOption(opts, s.concurrency, func(i int, o model.Option) error {
		draft, usage, err := llm.Complete[factorDraft](ctx, s.llm, llm.Request{
			Operation: "score_option",
			Tier:      llm.TierFast,
			System:    jsonOnly,
			Prompt:    scorerPrompt(o, model.MappingsFor(o.ID, mappings), byID),
			Schema:    llm.SchemaOptionFactors,
		})
		mu.Lock()
		total.Add(usage)
		mu.Unlock()
		if err != nil {
			return eris.Wrapf(err, "pipeline: score option %s", o.ID)
		}
		scores[i] = model.OptionScore{
			OptionID:       o.ID,
			Factors:        draft.ScoreFactors,
			TotalScore:     draft.ScoreFactors.Total(),
			ScoreRationale: draft.ScoreRationale,
		}
		return nil
	})
	if err != nil {
		return nil, total, err
	}

	dist := make([]int, len(scores))
	for i, sc := range scores {
		dist[i] = sc.TotalScore
	}
	zap.L().Info("pipeline: option score distribution", zap.Ints("scores", dist))
	return scores, total, nil
}
