package pipeline

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

// DefaultOptionConcurrency bounds the per-option model calls.
const DefaultOptionConcurrency = 6

type mappingDraft struct {
	EvidenceID           string             `json:"evidenceId"`
	Relationship         model.Relationship `json:"relationship"`
	RelevanceExplanation string             `json:"relevanceExplanation"`
	ImpactLevel          model.ImpactLevel  `json:"impactLevel"`
}

// forEachOption runs fn for every option with at most limit in flight and
// returns the first error once all calls have finished. Siblings are not
// cancelled.
func forEachOption(opts []model.Option, limit int, fn func(i int, o model.Option) error) error {
	var g errgroup.Group
	g.SetLimit(max(1, limit))
	for i, o := range opts {
		g.Go(func() error { return fn(i, o) })
	}
	return g.Wait()
}

// Mapper classifies every evidence card against every option.
type Mapper struct {
	llm         llm.Client
	concurrency int
}

// NewMapper creates a Mapper.
func NewMapper(c llm.Client, concurrency int) *Mapper {
	if concurrency <= 0 {
		concurrency = DefaultOptionConcurrency
	}
	return &Mapper{llm: c, concurrency: concurrency}
}

// Map makes one call per option and concatenates the mappings in option
// order. Evidence IDs are taken as the model returns them.
func (m *Mapper) Map(ctx context.Context, opts []model.Option, evidence []model.EvidenceCard) ([]model.EvidenceMapping, model.TokenUsage, error) {
	perOption := make([][]model.EvidenceMapping, len(opts))
	var (
		mu    sync.Mutex
		total model.TokenUsage
	)

	err := forEachOption(opts, m.concurrency, func(i int, o model.Option) error {
		drafts, usage, err := llm.Complete[[]mappingDraft](ctx, m.llm, llm.Request{
			Operation: "map_evidence",
			Tier:      llm.TierStrong,
			System:    mapperSystem,
			Prompt:    mapperPrompt(o, evidence),
			Schema:    llm.SchemaEvidenceMappings,
		})
		mu.Lock()
		total.Add(usage)
		mu.Unlock()
		if err != nil {
			return eris.Wrapf(err, "pipeline: map evidence for option %s", o.ID)
		}

		out := make([]model.EvidenceMapping, 0, len(drafts))
		for _, d := range drafts {
			out = append(out, model.EvidenceMapping{
				OptionID:             o.ID,
				EvidenceID:           d.EvidenceID,
				Relationship:         d.Relationship,
				RelevanceExplanation: d.RelevanceExplanation,
				ImpactLevel:          d.ImpactLevel,
			})
		}
		perOption[i] = out
		zap.L().Debug("pipeline: evidence mapped", zap.String("option_id", o.ID), zap.Int("mappings", len(out)))
		return nil
	})
	if err != nil {
		return nil, total, err
	}

	var all []model.EvidenceMapping
	for _, ms := range perOption {
		all = append(all, ms...)
	}
	return all, total, nil
}
