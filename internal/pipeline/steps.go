package pipeline

import (
	"context"

	"github.com/sells-group/decision-cli/internal/events"
	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/store"
)

// ScanResult is the output of the evidence scan.
type ScanResult struct {
	Queries      int                  `json:"queries"`
	Found        int                  `json:"found"`
	Deduplicated int                  `json:"deduplicated"`
	Shortlisted  int                  `json:"shortlisted"`
	Extracted    int                  `json:"extracted"`
	Evidence     []model.EvidenceCard `json:"evidence"`
}

// EvidenceScan plans queries, discovers and scrapes sources and extracts
// the evidence cards, which are persisted before it returns.
func (p *Pipeline) EvidenceScan(ctx context.Context, ref RunRef, in model.DecisionInput) (*ScanResult, []model.PhaseResult, error) {
	var phases []model.PhaseResult
	scan := &ScanResult{}

	var plans []model.QueryPlan
	ph, err := p.track(ctx, ref, stageSpec{name: StagePlan, status: model.RunStatusScanning}, func() (stageOutcome, error) {
		var usage model.TokenUsage
		var err error
		plans, usage, err = p.planner.PlanQueries(ctx, in)
		return stageOutcome{counts: map[string]int{"queries": len(plans)}, usage: usage}, err
	})
	phases = append(phases, ph)
	if err != nil {
		return nil, phases, err
	}
	scan.Queries = len(plans)
	p.sink.Progress(ctx, ref.RunID, events.MilestoneSearching.Update())

	var found *DiscoveryResult
	ph, err = p.track(ctx, ref, stageSpec{name: StageDiscover, progress: events.MilestoneSearching.Progress}, func() (stageOutcome, error) {
		var err error
		found, err = p.discoverer.Discover(ctx, plans)
		if err != nil {
			return stageOutcome{}, err
		}
		return stageOutcome{
			counts: map[string]int{
				"found":          found.Found,
				"deduplicated":   found.Deduplicated,
				"shortlisted":    found.Shortlisted,
				"failed_queries": found.FailedPlans,
			},
			usage: model.TokenUsage{Cost: found.Cost},
		}, nil
	})
	phases = append(phases, ph)
	if err != nil {
		return nil, phases, err
	}
	scan.Found, scan.Deduplicated, scan.Shortlisted = found.Found, found.Deduplicated, found.Shortlisted
	p.sink.Progress(ctx, ref.RunID, events.MilestoneExtracting.Update())

	var pages []model.ExtractedContent
	ph, err = p.track(ctx, ref, stageSpec{name: StageExtract, progress: events.MilestoneExtracting.Progress}, func() (stageOutcome, error) {
		var err error
		pages, err = p.extractor.Extract(ctx, found.Candidates)
		if err != nil {
			return stageOutcome{}, err
		}
		return stageOutcome{
			counts: map[string]int{"attempted": p.extractor.targetCount(len(found.Candidates)), "succeeded": len(pages)},
			usage:  model.TokenUsage{Cost: p.scrapeCost(pages)},
		}, nil
	})
	phases = append(phases, ph)
	if err != nil {
		return nil, phases, err
	}
	scan.Extracted = len(pages)
	p.sink.Progress(ctx, ref.RunID, events.MilestoneGenerating.Update())

	ph, err = p.track(ctx, ref, stageSpec{name: StageEvidence, progress: events.MilestoneGenerating.Progress}, func() (stageOutcome, error) {
		cards, usage, err := p.evidence.Generate(ctx, pages, in)
		out := stageOutcome{counts: map[string]int{"pages": len(pages), "evidence": len(cards)}, usage: usage}
		if err != nil {
			return out, err
		}
		if err := save(ctx, p.store, ref.RunID, store.ArtifactEvidence, cards, func(c model.EvidenceCard) string { return c.ID }); err != nil {
			return out, err
		}
		scan.Evidence = cards
		return out, nil
	})
	phases = append(phases, ph)
	if err != nil {
		return nil, phases, err
	}
	p.sink.Progress(ctx, ref.RunID, events.MilestoneScanComplete.Update())
	return scan, phases, nil
}

// scrapeCost prices the pages fetched through Firecrawl.
func (p *Pipeline) scrapeCost(pages []model.ExtractedContent) float64 {
	var credits int
	for _, pg := range pages {
		if pg.Source == "firecrawl" || pg.Source == "firecrawl-js" {
			credits++
		}
	}
	return float64(credits) * p.calc.FirecrawlCredit()
}

// GenerateOptions composes and deduplicates the options, then persists
// them.
func (p *Pipeline) GenerateOptions(ctx context.Context, ref RunRef, evidence []model.EvidenceCard, in model.DecisionInput) ([]model.Option, []model.PhaseResult, error) {
	var phases []model.PhaseResult
	progress := events.MilestoneScanComplete.Progress

	var composed []model.Option
	ph, err := p.track(ctx, ref, stageSpec{name: StageCompose, status: model.RunStatusOptions, progress: progress}, func() (stageOutcome, error) {
		var usage model.TokenUsage
		var err error
		composed, usage, err = p.composer.Compose(ctx, evidence, in)
		return stageOutcome{counts: map[string]int{"evidence": len(evidence), "options": len(composed)}, usage: usage}, err
	})
	phases = append(phases, ph)
	if err != nil {
		return nil, phases, err
	}

	var opts []model.Option
	ph, err = p.track(ctx, ref, stageSpec{name: StageDedupe, progress: progress}, func() (stageOutcome, error) {
		var usage model.TokenUsage
		var err error
		opts, usage, err = p.deduper.Dedupe(ctx, composed)
		out := stageOutcome{counts: map[string]int{"composed": len(composed), "options": len(opts)}, usage: usage}
		if err != nil {
			return out, err
		}
		return out, save(ctx, p.store, ref.RunID, store.ArtifactOption, opts, func(o model.Option) string { return o.ID })
	})
	phases = append(phases, ph)
	if err != nil {
		return nil, phases, err
	}
	p.sink.Progress(ctx, ref.RunID, events.MilestoneOptions.Update())
	return opts, phases, nil
}

// MapEvidence classifies the evidence against every option and persists
// the mappings.
func (p *Pipeline) MapEvidence(ctx context.Context, ref RunRef, opts []model.Option, evidence []model.EvidenceCard) ([]model.EvidenceMapping, []model.PhaseResult, error) {
	var mappings []model.EvidenceMapping
	ph, err := p.track(ctx, ref, stageSpec{name: StageMap, status: model.RunStatusMapping, progress: events.MilestoneOptions.Progress}, func() (stageOutcome, error) {
		var usage model.TokenUsage
		var err error
		mappings, usage, err = p.mapper.Map(ctx, opts, evidence)
		out := stageOutcome{counts: map[string]int{"options": len(opts), "mappings": len(mappings)}, usage: usage}
		if err != nil {
			return out, err
		}
		return out, save(ctx, p.store, ref.RunID, store.ArtifactMapping, mappings, func(m model.EvidenceMapping) string {
			return m.OptionID + ":" + m.EvidenceID
		})
	})
	if err != nil {
		return nil, []model.PhaseResult{ph}, err
	}
	p.sink.Progress(ctx, ref.RunID, events.MilestoneMapping.Update())
	return mappings, []model.PhaseResult{ph}, nil
}

// ScoreOptions scores every option and persists the scores.
func (p *Pipeline) ScoreOptions(ctx context.Context, ref RunRef, opts []model.Option, mappings []model.EvidenceMapping, evidence []model.EvidenceCard) ([]model.OptionScore, []model.PhaseResult, error) {
	var scores []model.OptionScore
	ph, err := p.track(ctx, ref, stageSpec{name: StageScore, status: model.RunStatusScoring, progress: events.MilestoneMapping.Progress}, func() (stageOutcome, error) {
		var usage model.TokenUsage
		var err error
		scores, usage, err = p.scorer.Score(ctx, opts, mappings, evidence)
		out := stageOutcome{counts: map[string]int{"scores": len(scores)}, usage: usage}
		if err != nil {
			return out, err
		}
		return out, save(ctx, p.store, ref.RunID, store.ArtifactScore, scores, func(s model.OptionScore) string { return s.OptionID })
	})
	if err != nil {
		return nil, []model.PhaseResult{ph}, err
	}
	p.sink.Progress(ctx, ref.RunID, events.MilestoneScoring.Update())
	return scores, []model.PhaseResult{ph}, nil
}

// GenerateRecommendation picks the primary and hedge options and persists
// the recommendation.
func (p *Pipeline) GenerateRecommendation(ctx context.Context, ref RunRef, opts []model.Option, scores []model.OptionScore, mappings []model.EvidenceMapping) (*model.Recommendation, []model.PhaseResult, error) {
	var rec *model.Recommendation
	ph, err := p.track(ctx, ref, stageSpec{name: StageRecommend, status: model.RunStatusRecommending, progress: events.MilestoneScoring.Progress}, func() (stageOutcome, error) {
		var usage model.TokenUsage
		var err error
		rec, usage, err = p.recommender.Recommend(ctx, opts, scores, mappings)
		out := stageOutcome{usage: usage}
		if err != nil {
			return out, err
		}
		hedge := 0
		if rec.HasHedge() {
			hedge = 1
		}
		out.counts = map[string]int{
			"hedge":             hedge,
			"decision_changers": len(rec.DecisionChangers),
			"monitor_triggers":  len(rec.MonitorTriggers),
		}
		return out, save(ctx, p.store, ref.RunID, store.ArtifactRecommendation, []model.Recommendation{*rec}, func(model.Recommendation) string {
			return "recommendation"
		})
	})
	if err != nil {
		return nil, []model.PhaseResult{ph}, err
	}
	p.sink.Progress(ctx, ref.RunID, events.MilestoneRecommended.Update())
	return rec, []model.PhaseResult{ph}, nil
}

// GenerateBrief writes and persists the brief. The final milestone is
// emitted by Complete.
func (p *Pipeline) GenerateBrief(ctx context.Context, ref RunRef, in BriefInput) (*model.Brief, []model.PhaseResult, error) {
	var brief *model.Brief
	ph, err := p.track(ctx, ref, stageSpec{name: StageBrief, status: model.RunStatusWriting, progress: events.MilestoneRecommended.Progress}, func() (stageOutcome, error) {
		var usage model.TokenUsage
		var err error
		brief, usage, err = p.writer.Write(ctx, in)
		out := stageOutcome{usage: usage}
		if err != nil {
			return out, err
		}
		fallback := 0
		if brief.CitationFallback {
			fallback = 1
		}
		out.counts = map[string]int{"citations": len(brief.Citations), "citation_fallback": fallback}
		return out, save(ctx, p.store, ref.RunID, store.ArtifactBrief, []model.Brief{*brief}, func(b model.Brief) string { return b.ID })
	})
	if err != nil {
		return nil, []model.PhaseResult{ph}, err
	}
	return brief, []model.PhaseResult{ph}, nil
}
