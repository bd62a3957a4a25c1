package pipeline

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

// Option set bounds enforced by the deduplicator.
const (
	MinOptions        = 3
	DefaultMaxOptions = 6
)

type mergeGroup struct {
	Indices   []int  `json:"indices"`
	KeepIndex int    `json:"keepIndex"`
	Reason    string `json:"reason"`
}

// Deduplicator merges cosmetically similar options.
type Deduplicator struct {
	llm llm.Client
	max int
}

// NewDeduplicator creates a Deduplicator that caps the result at maxOptions.
func NewDeduplicator(c llm.Client, maxOptions int) *Deduplicator {
	if maxOptions <= 0 {
		maxOptions = DefaultMaxOptions
	}
	return &Deduplicator{llm: c, max: maxOptions}
}

// Dedupe returns the merged option set. Sets of three or fewer are returned
// untouched. A merge that would leave fewer than three options, or a
// failed model call, keeps the original set.
func (d *Deduplicator) Dedupe(ctx context.Context, opts []model.Option) ([]model.Option, model.TokenUsage, error) {
	if len(opts) <= MinOptions {
		return opts, model.TokenUsage{}, nil
	}

	groups, usage, err := llm.Complete[[]mergeGroup](ctx, d.llm, llm.Request{
		Operation: "dedupe_options",
		Tier:      llm.TierFast,
		System:    jsonOnly,
		Prompt:    dedupePrompt(opts),
		Schema:    llm.SchemaOptionMerges,
	})
	if err != nil {
		zap.L().Warn("pipeline: option dedup failed, keeping original set", zap.Error(err))
		return d.capped(opts), usage, nil
	}

	merged, removed := mergeOptions(opts, groups)
	if len(removed) > 0 {
		reasons := make([]string, 0, len(groups))
		for _, g := range groups {
			reasons = append(reasons, g.Reason)
		}
		zap.L().Info("pipeline: options merged",
			zap.Ints("removed", removed),
			zap.Strings("reasons", reasons),
		)
	}
	if len(merged) < MinOptions {
		return d.capped(opts), usage, nil
	}
	return d.capped(merged), usage, nil
}

func (d *Deduplicator) capped(opts []model.Option) []model.Option {
	if len(opts) > d.max {
		return opts[:d.max]
	}
	return opts
}

// mergeOptions applies valid groups: at least two in-range indices with
// keepIndex among them. The kept option gains the evidence IDs of the
// options it absorbs. Inputs are not modified.
func mergeOptions(opts []model.Option, groups []mergeGroup) ([]model.Option, []int) {
	merged := make([]model.Option, len(opts))
	copy(merged, opts)
	remove := make(map[int]struct{})

	for _, g := range groups {
		var members []int
		for _, i := range g.Indices {
			if i >= 0 && i < len(merged) && !slices.Contains(members, i) {
				members = append(members, i)
			}
		}
		if len(members) < 2 || !slices.Contains(members, g.KeepIndex) {
			continue
		}
		keep := merged[g.KeepIndex]
		evidence := slices.Clone(keep.GroundedInEvidence)
		for _, i := range members {
			if i == g.KeepIndex {
				continue
			}
			for _, id := range merged[i].GroundedInEvidence {
				if !slices.Contains(evidence, id) {
					evidence = append(evidence, id)
				}
			}
			remove[i] = struct{}{}
		}
		keep.GroundedInEvidence = evidence
		merged[g.KeepIndex] = keep
	}

	out := make([]model.Option, 0, len(merged))
	removed := make([]int, 0, len(remove))
	for i, o := range merged {
		if _, ok := remove[i]; ok {
			removed = append(removed, i)
			continue
		}
		out = append(out, o)
	}
	return out, removed
}
