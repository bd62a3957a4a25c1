package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

func recommendationJSON(primary string, hedge, cond any) map[string]any {
	out := map[string]any{
		"primaryOptionId":   primary,
		"primaryConfidence": 72,
		"primaryRationale":  "best evidence coverage",
		"decisionChangers": []model.DecisionChanger{
			{Condition: "EU payroll regulation tightens", WouldFavor: "opt_2", Likelihood: model.LikelihoodMedium},
		},
		"monitorTriggers": []model.MonitorTrigger{
			{Signal: "competitor pricing", Source: "G2", Threshold: "-20%", Frequency: model.FrequencyMonthly},
		},
	}
	if hedge != nil {
		out["hedgeOptionId"] = hedge
	}
	if cond != nil {
		out["hedgeCondition"] = cond
	}
	return out
}

func TestRecommend_WithHedge(t *testing.T) {
	c := scriptedLLM(t, map[string]handler{
		"recommend": func(llm.Request) (any, error) {
			return recommendationJSON("opt_1", "opt_2", "if partner terms slip"), nil
		},
	})

	rec, _, err := NewRecommender(c).Recommend(context.Background(), testOptions(3), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "opt_1", rec.PrimaryOptionID)
	assert.InDelta(t, 72, rec.PrimaryConfidence, 1e-9)
	require.True(t, rec.HasHedge())
	assert.Equal(t, "opt_2", *rec.HedgeOptionID)
	assert.Equal(t, "if partner terms slip", *rec.HedgeCondition)
	assert.Len(t, rec.DecisionChangers, 1)
	assert.Len(t, rec.MonitorTriggers, 1)
}

func TestRecommend_HedgeNormalization(t *testing.T) {
	tests := []struct {
		name  string
		hedge any
		cond  any
	}{
		{"absent", nil, nil},
		{"blank id", "  ", "something"},
		{"condition without id", nil, "when churn rises"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := scriptedLLM(t, map[string]handler{
				"recommend": func(llm.Request) (any, error) {
					return recommendationJSON("opt_1", tt.hedge, tt.cond), nil
				},
			})

			rec, _, err := NewRecommender(c).Recommend(context.Background(), testOptions(3), nil, nil)
			require.NoError(t, err)
			assert.Nil(t, rec.HedgeOptionID)
			assert.Nil(t, rec.HedgeCondition)
			assert.False(t, rec.HasHedge())
		})
	}
}

func TestRecommend_UnknownPrimaryKept(t *testing.T) {
	c := scriptedLLM(t, map[string]handler{
		"recommend": func(llm.Request) (any, error) { return recommendationJSON("opt_99", nil, nil), nil },
	})

	rec, _, err := NewRecommender(c).Recommend(context.Background(), testOptions(3), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "opt_99", rec.PrimaryOptionID)
}

func TestRecommend_Failure(t *testing.T) {
	c := scriptedLLM(t, map[string]handler{
		"recommend": func(llm.Request) (any, error) { return nil, errors.New("overloaded") },
	})

	rec, _, err := NewRecommender(c).Recommend(context.Background(), testOptions(3), nil, nil)
	require.Error(t, err)
	assert.Nil(t, rec)
}

func TestRecommenderPrompt(t *testing.T) {
	opts := testOptions(3)
	scores := []model.OptionScore{{OptionID: "opt_1", TotalScore: 71, ScoreRationale: "well supported"}}
	var mappings []model.EvidenceMapping
	for i := range 8 {
		mappings = append(mappings, model.EvidenceMapping{
			OptionID:             "opt_1",
			EvidenceID:           fmt.Sprintf("ev_%d", i),
			Relationship:         model.RelationshipSupporting,
			ImpactLevel:          model.ImpactHigh,
			RelevanceExplanation: fmt.Sprintf("reason %d", i),
		})
	}
	mappings = append(mappings, model.EvidenceMapping{
		OptionID: "opt_2", Relationship: model.RelationshipContradicting, ImpactLevel: model.ImpactLow, RelevanceExplanation: "weak",
	})

	p := recommenderPrompt(opts, scores, mappings)

	assert.Contains(t, p, "Option opt_1: Option 1")
	assert.Contains(t, p, "Score: 71 (well supported)")
	assert.Contains(t, p, "Score: n/a (n/a)")
	assert.Contains(t, p, "- supporting (high): reason 5")
	assert.NotContains(t, p, "reason 6")
	assert.Equal(t, 6, strings.Count(p, "- supporting (high)"))
	assert.Contains(t, p, "- contradicting (low): weak")
	assert.Equal(t, 1, strings.Count(p, "No mappings"))
}
