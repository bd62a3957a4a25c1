package pipeline

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

// DefaultComposeEvidence is how many cards the composer sees.
const DefaultComposeEvidence = 30

// ErrDuplicateOptionTitles is returned when the composed options share a
// title after normalization on both attempts.
var ErrDuplicateOptionTitles = eris.New("pipeline: duplicate option titles")

type optionDraft struct {
	Title                    string   `json:"title"`
	Summary                  string   `json:"summary"`
	CommitsTo                []string `json:"commitsTo"`
	Deprioritizes            []string `json:"deprioritizes"`
	PrimaryUpside            string   `json:"primaryUpside"`
	PrimaryRisk              string   `json:"primaryRisk"`
	Reversibility            int      `json:"reversibility"`
	ReversibilityExplanation string   `json:"reversibilityExplanation"`
	GroundedInEvidence       []string `json:"groundedInEvidence"`
}

// Composer synthesizes mutually exclusive options from the evidence.
type Composer struct {
	llm      llm.Client
	evidence int
	ids      func(prefix string) string
}

// NewComposer creates a Composer that shows the model the top topN cards
// by relevance.
func NewComposer(c llm.Client, topN int) *Composer {
	if topN <= 0 {
		topN = DefaultComposeEvidence
	}
	return &Composer{llm: c, evidence: topN, ids: newID}
}

// Compose returns 4-6 options with distinct titles. Any failure of the
// first attempt, duplicate titles included, triggers one more generation.
func (c *Composer) Compose(ctx context.Context, evidence []model.EvidenceCard, in model.DecisionInput) ([]model.Option, model.TokenUsage, error) {
	top := make([]model.EvidenceCard, len(evidence))
	copy(top, evidence)
	sort.SliceStable(top, func(i, j int) bool { return top[i].RelevanceScore > top[j].RelevanceScore })
	if len(top) > c.evidence {
		top = top[:c.evidence]
	}
	prompt := composerPrompt(in, top)

	var total model.TokenUsage
	opts, usage, err := c.attempt(ctx, prompt)
	total.Add(usage)
	if err != nil {
		zap.L().Warn("pipeline: option composition failed, retrying once", zap.Error(err))
		opts, usage, err = c.attempt(ctx, prompt)
		total.Add(usage)
		if err != nil {
			return nil, total, eris.Wrap(err, "pipeline: compose options")
		}
	}

	zap.L().Info("pipeline: options composed", zap.Int("count", len(opts)))
	return opts, total, nil
}

func (c *Composer) attempt(ctx context.Context, prompt string) ([]model.Option, model.TokenUsage, error) {
	drafts, usage, err := llm.Complete[[]optionDraft](ctx, c.llm, llm.Request{
		Operation: "compose_options",
		Tier:      llm.TierStrong,
		System:    jsonOnly,
		Prompt:    prompt,
		Schema:    llm.SchemaOptions,
	})
	if err != nil {
		return nil, usage, err
	}

	opts := make([]model.Option, 0, len(drafts))
	for _, d := range drafts {
		opts = append(opts, model.Option{
			ID:                       c.ids("opt"),
			Title:                    d.Title,
			Summary:                  d.Summary,
			CommitsTo:                d.CommitsTo,
			Deprioritizes:            d.Deprioritizes,
			PrimaryUpside:            d.PrimaryUpside,
			PrimaryRisk:              d.PrimaryRisk,
			Reversibility:            d.Reversibility,
			ReversibilityExplanation: d.ReversibilityExplanation,
			GroundedInEvidence:       d.GroundedInEvidence,
		})
	}
	if !model.TitlesDistinct(opts) {
		return nil, usage, ErrDuplicateOptionTitles
	}
	return opts, usage, nil
}
