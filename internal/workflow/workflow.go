// Package workflow runs the decision pipeline as a Temporal workflow, one
// activity per pipeline step.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/pipeline"
)

// WorkflowName is the registered name of AnalyzeDecisionWorkflow.
const WorkflowName = "AnalyzeDecisionWorkflow"

// AnalyzeInput starts one analysis. The run row must already exist.
type AnalyzeInput struct {
	DecisionID string             `json:"decisionId"`
	RunID      string             `json:"runId"`
	Decision   model.FullDecision `json:"decision"`
}

// Start-to-close timeouts per activity.
var timeouts = map[string]time.Duration{
	"EvidenceScan":           20 * time.Minute,
	"GenerateOptions":        5 * time.Minute,
	"MapEvidence":            10 * time.Minute,
	"ScoreOptions":           5 * time.Minute,
	"GenerateRecommendation": 5 * time.Minute,
	"GenerateBrief":          5 * time.Minute,
}

func withActivity(ctx workflow.Context, name string) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeouts[name],
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				ErrTypeStage,
			},
		},
	})
}

// AnalyzeDecisionWorkflow sequences the six pipeline steps. Artifacts are
// passed between activities as workflow values.
func AnalyzeDecisionWorkflow(ctx workflow.Context, in AnalyzeInput) (*model.AnalysisResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("workflow: analysis started", "run_id", in.RunID, "decision_id", in.DecisionID)

	var a *Activities
	ref := pipeline.RunRef{RunID: in.RunID, DecisionID: in.DecisionID}
	decision := in.Decision
	decision.DecisionID = in.DecisionID

	var scan ScanOutput
	if err := workflow.ExecuteActivity(withActivity(ctx, "EvidenceScan"), a.EvidenceScan, ScanInput{
		Ref:      ref,
		Decision: decision.DecisionInput,
	}).Get(ctx, &scan); err != nil {
		return nil, err
	}
	phases := scan.Phases

	var opts OptionsOutput
	if err := workflow.ExecuteActivity(withActivity(ctx, "GenerateOptions"), a.GenerateOptions, OptionsInput{
		Ref:      ref,
		Evidence: scan.Scan.Evidence,
		Decision: decision.DecisionInput,
	}).Get(ctx, &opts); err != nil {
		return nil, err
	}
	phases = append(phases, opts.Phases...)

	var mapped MapOutput
	if err := workflow.ExecuteActivity(withActivity(ctx, "MapEvidence"), a.MapEvidence, MapInput{
		Ref:      ref,
		Options:  opts.Options,
		Evidence: scan.Scan.Evidence,
	}).Get(ctx, &mapped); err != nil {
		return nil, err
	}
	phases = append(phases, mapped.Phases...)

	var scored ScoreOutput
	if err := workflow.ExecuteActivity(withActivity(ctx, "ScoreOptions"), a.ScoreOptions, ScoreInput{
		Ref:      ref,
		Options:  opts.Options,
		Mappings: mapped.Mappings,
		Evidence: scan.Scan.Evidence,
	}).Get(ctx, &scored); err != nil {
		return nil, err
	}
	phases = append(phases, scored.Phases...)

	var rec RecommendOutput
	if err := workflow.ExecuteActivity(withActivity(ctx, "GenerateRecommendation"), a.GenerateRecommendation, RecommendInput{
		Ref:      ref,
		Options:  opts.Options,
		Scores:   scored.Scores,
		Mappings: mapped.Mappings,
	}).Get(ctx, &rec); err != nil {
		return nil, err
	}
	phases = append(phases, rec.Phases...)

	var result model.AnalysisResult
	if err := workflow.ExecuteActivity(withActivity(ctx, "GenerateBrief"), a.GenerateBrief, BriefInput{
		Ref:            ref,
		Decision:       decision,
		Evidence:       scan.Scan.Evidence,
		Options:        opts.Options,
		Mappings:       mapped.Mappings,
		Scores:         scored.Scores,
		Recommendation: *rec.Recommendation,
		Phases:         phases,
	}).Get(ctx, &result); err != nil {
		return nil, err
	}

	logger.Info("workflow: analysis complete",
		"run_id", in.RunID,
		"options", len(result.Options),
		"cost_usd", result.TotalCost,
	)
	return &result, nil
}
