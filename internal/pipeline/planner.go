package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

// Planner asks the model for the web searches a decision needs.
type Planner struct {
	llm llm.Client
}

// NewPlanner creates a Planner.
func NewPlanner(c llm.Client) *Planner {
	return &Planner{llm: c}
}

// PlanQueries returns 8-20 query plans. A failed attempt is retried once
// with the identical prompt; a second failure is returned.
func (p *Planner) PlanQueries(ctx context.Context, in model.DecisionInput) ([]model.QueryPlan, model.TokenUsage, error) {
	req := llm.Request{
		Operation: "plan_queries",
		Tier:      llm.TierFast,
		System:    jsonOnly,
		Prompt:    plannerPrompt(in),
		Schema:    llm.SchemaQueryPlans,
	}

	var total model.TokenUsage
	plans, usage, err := llm.Complete[[]model.QueryPlan](ctx, p.llm, req)
	total.Add(usage)
	if err != nil {
		zap.L().Warn("pipeline: query planning failed, retrying once", zap.Error(err))
		plans, usage, err = llm.Complete[[]model.QueryPlan](ctx, p.llm, req)
		total.Add(usage)
		if err != nil {
			return nil, total, eris.Wrap(err, "pipeline: plan queries")
		}
	}

	for i := range plans {
		if plans[i].Freshness == "" {
			plans[i].Freshness = model.FreshnessAny
		}
	}
	zap.L().Info("pipeline: planned queries", zap.Int("count", len(plans)))
	return plans, total, nil
}
