// Package pipeline turns a decision frame into evidence, options, scores, a
// recommendation and a cited brief.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/cache"
	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/cost"
	"github.com/sells-group/decision-cli/internal/events"
	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/scrape"
	"github.com/sells-group/decision-cli/internal/store"
)

// Stage names, in execution order.
const (
	StagePlan      = "plan_queries"
	StageDiscover  = "discover_urls"
	StageExtract   = "extract_content"
	StageEvidence  = "generate_evidence"
	StageCompose   = "compose_options"
	StageDedupe    = "dedupe_options"
	StageMap       = "map_evidence"
	StageScore     = "score_options"
	StageRecommend = "recommend"
	StageBrief     = "write_brief"
)

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// StageError is a fatal stage failure.
type StageError struct {
	Stage      string
	DecisionID string
	RunID      string
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: stage %s failed for decision %s: %v", e.Stage, e.DecisionID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RunRef identifies the run a step writes to.
type RunRef struct {
	RunID      string `json:"runId"`
	DecisionID string `json:"decisionId"`
}

// Deps are the collaborators a Pipeline drives.
type Deps struct {
	LLM        llm.Client
	Search     Searcher
	Scraper    scrape.Scraper
	Cache      cache.Cache
	Store      store.Store
	Sink       events.Sink
	Calculator *cost.Calculator
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithIDGenerator replaces the uuid-based evidence and option IDs.
func WithIDGenerator(fn func(prefix string) string) Option {
	return func(p *Pipeline) {
		p.evidence.ids = fn
		p.composer.ids = fn
	}
}

// WithClock fixes the time source of every stage.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.discoverer.now = now
		p.extractor.now = now
		p.writer.now = now
	}
}

// Pipeline runs the ten stages against one store and event sink.
type Pipeline struct {
	store store.Store
	sink  events.Sink
	calc  *cost.Calculator

	planner     *Planner
	discoverer  *Discoverer
	extractor   *Extractor
	evidence    *EvidenceGenerator
	composer    *Composer
	deduper     *Deduplicator
	mapper      *Mapper
	scorer      *Scorer
	recommender *Recommender
	writer      *BriefWriter
}

// New wires the stages from cfg and deps.
func New(cfg config.PipelineConfig, deps Deps, opts ...Option) *Pipeline {
	sink := deps.Sink
	if sink == nil {
		sink = events.Nop{}
	}
	calc := deps.Calculator
	if calc == nil {
		calc = cost.NewCalculator(cost.DefaultRates())
	}

	p := &Pipeline{
		store:      deps.Store,
		sink:       sink,
		calc:       calc,
		planner:    NewPlanner(deps.LLM),
		discoverer: NewDiscoverer(deps.Search, cfg.SearchWorkers, cfg.MaxCandidates),
		extractor: NewExtractor(deps.Cache, deps.Scraper, ExtractorConfig{
			Workers: cfg.ScrapeWorkers,
			Min:     cfg.MinExtract,
			Max:     cfg.MaxExtract,
		}),
		evidence:    NewEvidenceGenerator(deps.LLM, cfg.EvidenceWorkers, cfg.MaxEvidence),
		composer:    NewComposer(deps.LLM, cfg.ComposeEvidence),
		deduper:     NewDeduplicator(deps.LLM, cfg.MaxOptions),
		mapper:      NewMapper(deps.LLM, cfg.OptionConcurrency),
		scorer:      NewScorer(deps.LLM, cfg.OptionConcurrency),
		recommender: NewRecommender(deps.LLM),
		writer:      NewBriefWriter(deps.LLM),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// WithScrapeLimits overrides the extractor's word cap and cache TTL.
func WithScrapeLimits(maxWords int, ttl time.Duration) Option {
	return func(p *Pipeline) {
		if maxWords > 0 {
			p.extractor.cfg.MaxWords = maxWords
		}
		if ttl > 0 {
			p.extractor.cfg.TTL = ttl
		}
	}
}

// Start validates the decision and creates its run row.
func (p *Pipeline) Start(ctx context.Context, decisionID string, decision model.FullDecision) (RunRef, error) {
	if decisionID != "" {
		decision.DecisionID = decisionID
	}
	if decision.DecisionID == "" {
		return RunRef{}, eris.New("pipeline: decision id is required")
	}
	if err := decision.Validate(); err != nil {
		return RunRef{}, eris.Wrap(err, "pipeline: invalid decision")
	}
	run, err := p.store.CreateRun(ctx, decision)
	if err != nil {
		return RunRef{}, eris.Wrap(err, "pipeline: create run")
	}
	return RunRef{RunID: run.ID, DecisionID: decision.DecisionID}, nil
}

// Run creates a run for the decision and executes every stage.
func (p *Pipeline) Run(ctx context.Context, decisionID string, decision model.FullDecision) (*model.AnalysisResult, error) {
	ref, err := p.Start(ctx, decisionID, decision)
	if err != nil {
		return nil, err
	}
	decision.DecisionID = ref.DecisionID
	return p.Execute(ctx, ref, decision)
}

// Execute runs every stage for an existing run and stores the result.
func (p *Pipeline) Execute(ctx context.Context, ref RunRef, decision model.FullDecision) (*model.AnalysisResult, error) {
	log := zap.L().With(zap.String("run_id", ref.RunID), zap.String("decision_id", ref.DecisionID))
	log.Info("pipeline: starting analysis")
	start := time.Now()

	result := &model.AnalysisResult{RunID: ref.RunID, DecisionID: ref.DecisionID}

	scan, phases, err := p.EvidenceScan(ctx, ref, decision.DecisionInput)
	result.Phases = append(result.Phases, phases...)
	if err != nil {
		return result, err
	}
	result.Evidence = scan.Evidence

	result.Options, phases, err = p.GenerateOptions(ctx, ref, scan.Evidence, decision.DecisionInput)
	result.Phases = append(result.Phases, phases...)
	if err != nil {
		return result, err
	}

	result.Mappings, phases, err = p.MapEvidence(ctx, ref, result.Options, result.Evidence)
	result.Phases = append(result.Phases, phases...)
	if err != nil {
		return result, err
	}

	result.Scores, phases, err = p.ScoreOptions(ctx, ref, result.Options, result.Mappings, result.Evidence)
	result.Phases = append(result.Phases, phases...)
	if err != nil {
		return result, err
	}

	result.Recommendation, phases, err = p.GenerateRecommendation(ctx, ref, result.Options, result.Scores, result.Mappings)
	result.Phases = append(result.Phases, phases...)
	if err != nil {
		return result, err
	}

	result.Brief, phases, err = p.GenerateBrief(ctx, ref, BriefInput{
		Decision:       decision,
		Options:        result.Options,
		Scores:         result.Scores,
		Recommendation: *result.Recommendation,
		Evidence:       result.Evidence,
	})
	result.Phases = append(result.Phases, phases...)
	if err != nil {
		return result, err
	}

	if err := p.Complete(ctx, ref, result); err != nil {
		return result, err
	}

	log.Info("pipeline: analysis complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("evidence", len(result.Evidence)),
		zap.Int("options", len(result.Options)),
		zap.Int("input_tokens", result.TokenUsage.InputTokens),
		zap.Int("output_tokens", result.TokenUsage.OutputTokens),
		zap.Float64("cost_usd", result.TotalCost),
	)
	return result, nil
}

// Complete totals the phases, stores the result and emits the final
// milestone.
func (p *Pipeline) Complete(ctx context.Context, ref RunRef, result *model.AnalysisResult) error {
	result.TokenUsage = model.TokenUsage{}
	for _, ph := range result.Phases {
		result.TokenUsage.Add(ph.TokenUsage)
	}
	result.TotalCost = result.TokenUsage.Cost

	if err := p.store.UpdateRunResult(ctx, ref.RunID, result); err != nil {
		return p.fail(ctx, ref, "complete", events.MilestoneRecommended.Progress, eris.Wrap(err, "pipeline: store result"))
	}
	p.sink.Progress(ctx, ref.RunID, events.MilestoneBriefComplete.Update())
	return nil
}

// fail wraps err as a StageError and reports the failure.
func (p *Pipeline) fail(ctx context.Context, ref RunRef, stage string, progress int, err error) error {
	serr := &StageError{Stage: stage, DecisionID: ref.DecisionID, RunID: ref.RunID, Err: err}
	p.sink.Progress(ctx, ref.RunID, events.Failed(progress, fmt.Sprintf("Stage %s failed", stage)))
	return serr
}

// stageSpec describes one tracked stage.
type stageSpec struct {
	name string
	// status is the run status entered when the stage starts; empty keeps
	// the current one.
	status model.RunStatus
	// progress is reported when the stage fails.
	progress int
}

// stageOutcome is what a stage body reports back to track.
type stageOutcome struct {
	counts map[string]int
	usage  model.TokenUsage
}

// track runs fn as one phase: it records the phase row, emits stage events
// and turns a failure into a StageError.
func (p *Pipeline) track(ctx context.Context, ref RunRef, spec stageSpec, fn func() (stageOutcome, error)) (model.PhaseResult, error) {
	ev := events.StageEvent{RunID: ref.RunID, DecisionID: ref.DecisionID, Stage: spec.name, Status: spec.status}
	p.sink.StageStarted(ctx, ev)

	phase, err := p.store.CreatePhase(ctx, ref.RunID, spec.name)
	if err != nil {
		zap.L().Warn("pipeline: failed to create phase", zap.String("stage", spec.name), zap.Error(err))
	}

	start := time.Now()
	out, fnErr := fn()
	elapsed := time.Since(start)

	res := model.PhaseResult{
		Name:       spec.name,
		Status:     model.PhaseStatusComplete,
		Duration:   elapsed.Milliseconds(),
		TokenUsage: out.usage,
	}
	if len(out.counts) > 0 {
		res.Metadata = make(map[string]any, len(out.counts))
		for k, v := range out.counts {
			res.Metadata[k] = v
		}
	}
	if fnErr != nil {
		res.Status = model.PhaseStatusFailed
		res.Error = fnErr.Error()
	}
	if phase != nil {
		if err := p.store.CompletePhase(ctx, phase.ID, &res); err != nil {
			zap.L().Warn("pipeline: failed to complete phase", zap.String("stage", spec.name), zap.Error(err))
		}
	}

	ev.Counts = out.counts
	ev.Duration = elapsed
	ev.Err = fnErr
	p.sink.StageCompleted(ctx, ev)

	if fnErr != nil {
		return res, p.fail(ctx, ref, spec.name, spec.progress, fnErr)
	}
	return res, nil
}

// save persists one stage's records.
func save[T any](ctx context.Context, st store.ArtifactStore, runID string, kind store.ArtifactKind, records []T, id func(T) string) error {
	items, err := store.ArtifactsOf(records, id)
	if err != nil {
		return err
	}
	return eris.Wrapf(st.SaveArtifacts(ctx, runID, kind, items), "pipeline: save %s", kind)
}
