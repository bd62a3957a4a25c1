package workflow

import (
	"context"
	"errors"

	"go.temporal.io/sdk/temporal"

	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/pipeline"
	"github.com/sells-group/decision-cli/internal/resilience"
)

// Activities exposes the pipeline steps to Temporal. Register a pointer;
// method names become the activity names.
type Activities struct {
	pipeline *pipeline.Pipeline
}

// NewActivities creates the activity set for p.
func NewActivities(p *pipeline.Pipeline) *Activities {
	return &Activities{pipeline: p}
}

// ScanInput is the EvidenceScan activity input.
type ScanInput struct {
	Ref      pipeline.RunRef     `json:"ref"`
	Decision model.DecisionInput `json:"decision"`
}

// ScanOutput is the EvidenceScan activity result.
type ScanOutput struct {
	Scan   *pipeline.ScanResult `json:"scan"`
	Phases []model.PhaseResult  `json:"phases"`
}

// OptionsInput is the GenerateOptions activity input.
type OptionsInput struct {
	Ref      pipeline.RunRef      `json:"ref"`
	Evidence []model.EvidenceCard `json:"evidence"`
	Decision model.DecisionInput  `json:"decision"`
}

// OptionsOutput is the GenerateOptions activity result.
type OptionsOutput struct {
	Options []model.Option      `json:"options"`
	Phases  []model.PhaseResult `json:"phases"`
}

// MapInput is the MapEvidence activity input.
type MapInput struct {
	Ref      pipeline.RunRef      `json:"ref"`
	Options  []model.Option       `json:"options"`
	Evidence []model.EvidenceCard `json:"evidence"`
}

// MapOutput is the MapEvidence activity result.
type MapOutput struct {
	Mappings []model.EvidenceMapping `json:"mappings"`
	Phases   []model.PhaseResult     `json:"phases"`
}

// ScoreInput is the ScoreOptions activity input.
type ScoreInput struct {
	Ref      pipeline.RunRef         `json:"ref"`
	Options  []model.Option          `json:"options"`
	Mappings []model.EvidenceMapping `json:"mappings"`
	Evidence []model.EvidenceCard    `json:"evidence"`
}

// ScoreOutput is the ScoreOptions activity result.
type ScoreOutput struct {
	Scores []model.OptionScore  `json:"scores"`
	Phases []model.PhaseResult `json:"phases"`
}

// RecommendInput is the GenerateRecommendation activity input.
type RecommendInput struct {
	Ref      pipeline.RunRef         `json:"ref"`
	Options  []model.Option          `json:"options"`
	Scores   []model.OptionScore     `json:"scores"`
	Mappings []model.EvidenceMapping `json:"mappings"`
}

// RecommendOutput is the GenerateRecommendation activity result.
type RecommendOutput struct {
	Recommendation *model.Recommendation `json:"recommendation"`
	Phases         []model.PhaseResult   `json:"phases"`
}

// BriefInput carries every earlier artifact into the final activity,
// which writes the brief and completes the run.
type BriefInput struct {
	Ref            pipeline.RunRef         `json:"ref"`
	Decision       model.FullDecision      `json:"decision"`
	Evidence       []model.EvidenceCard    `json:"evidence"`
	Options        []model.Option          `json:"options"`
	Mappings       []model.EvidenceMapping `json:"mappings"`
	Scores         []model.OptionScore     `json:"scores"`
	Recommendation model.Recommendation    `json:"recommendation"`
	Phases         []model.PhaseResult     `json:"phases"`
}

// EvidenceScan runs plan, discover, extract and evidence.
func (a *Activities) EvidenceScan(ctx context.Context, in ScanInput) (*ScanOutput, error) {
	scan, phases, err := a.pipeline.EvidenceScan(ctx, in.Ref, in.Decision)
	if err != nil {
		return nil, activityError(err)
	}
	return &ScanOutput{Scan: scan, Phases: phases}, nil
}

// GenerateOptions runs compose and dedupe.
func (a *Activities) GenerateOptions(ctx context.Context, in OptionsInput) (*OptionsOutput, error) {
	opts, phases, err := a.pipeline.GenerateOptions(ctx, in.Ref, in.Evidence, in.Decision)
	if err != nil {
		return nil, activityError(err)
	}
	return &OptionsOutput{Options: opts, Phases: phases}, nil
}

// MapEvidence runs the evidence mapper.
func (a *Activities) MapEvidence(ctx context.Context, in MapInput) (*MapOutput, error) {
	mappings, phases, err := a.pipeline.MapEvidence(ctx, in.Ref, in.Options, in.Evidence)
	if err != nil {
		return nil, activityError(err)
	}
	return &MapOutput{Mappings: mappings, Phases: phases}, nil
}

// ScoreOptions runs the scorer.
func (a *Activities) ScoreOptions(ctx context.Context, in ScoreInput) (*ScoreOutput, error) {
	scores, phases, err := a.pipeline.ScoreOptions(ctx, in.Ref, in.Options, in.Mappings, in.Evidence)
	if err != nil {
		return nil, activityError(err)
	}
	return &ScoreOutput{Scores: scores, Phases: phases}, nil
}

// GenerateRecommendation runs the recommender.
func (a *Activities) GenerateRecommendation(ctx context.Context, in RecommendInput) (*RecommendOutput, error) {
	rec, phases, err := a.pipeline.GenerateRecommendation(ctx, in.Ref, in.Options, in.Scores, in.Mappings)
	if err != nil {
		return nil, activityError(err)
	}
	return &RecommendOutput{Recommendation: rec, Phases: phases}, nil
}

// GenerateBrief writes the brief and stores the assembled result.
func (a *Activities) GenerateBrief(ctx context.Context, in BriefInput) (*model.AnalysisResult, error) {
	brief, phases, err := a.pipeline.GenerateBrief(ctx, in.Ref, pipeline.BriefInput{
		Decision:       in.Decision,
		Options:        in.Options,
		Scores:         in.Scores,
		Recommendation: in.Recommendation,
		Evidence:       in.Evidence,
	})
	if err != nil {
		return nil, activityError(err)
	}

	rec := in.Recommendation
	result := &model.AnalysisResult{
		RunID:          in.Ref.RunID,
		DecisionID:     in.Ref.DecisionID,
		Evidence:       in.Evidence,
		Options:        in.Options,
		Mappings:       in.Mappings,
		Scores:         in.Scores,
		Recommendation: &rec,
		Brief:          brief,
		Phases:         append(in.Phases, phases...),
	}
	if err := a.pipeline.Complete(ctx, in.Ref, result); err != nil {
		return nil, activityError(err)
	}
	return result, nil
}

// Error types reported to the workflow.
const (
	ErrTypeStage     = "StageError"
	ErrTypeTransient = "TransientStageError"
)

// activityError keeps transient provider failures retryable and makes
// every other stage failure final.
func activityError(err error) error {
	stage := ""
	var serr *pipeline.StageError
	if errors.As(err, &serr) {
		stage = serr.Stage
	}
	if resilience.IsTransient(err) {
		return temporal.NewApplicationErrorWithCause(err.Error(), ErrTypeTransient, err, stage)
	}
	return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeStage, err, stage)
}
