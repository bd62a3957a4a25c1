package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

func TestScore_ComputesWeightedTotal(t *testing.T) {
	evidence := evidenceCards(2)
	mappings := []model.EvidenceMapping{
		{OptionID: "opt_1", EvidenceID: "ev_1", Relationship: model.RelationshipSupporting, ImpactLevel: model.ImpactHigh},
		{OptionID: "opt_2", EvidenceID: "ev_2", Relationship: model.RelationshipContradicting, ImpactLevel: model.ImpactLow},
		{OptionID: "opt_1", EvidenceID: "ev_missing", Relationship: model.RelationshipUnknown, ImpactLevel: model.ImpactLow},
	}
	var opt1Prompt string
	c := scriptedLLM(t, map[string]handler{
		"score_option": func(req llm.Request) (any, error) {
			if containsLine(req.Prompt, "Option: Option 1") {
				opt1Prompt = req.Prompt
			}
			return factorDraft{
				ScoreFactors: model.ScoreFactors{
					EvidenceStrength:  80,
					EvidenceRecency:   60,
					SourceReliability: 60,
					Corroboration:     60,
					ConstraintFit:     60,
					AssumptionRisk:    60,
				},
				ScoreRationale: "strong evidence",
			}, nil
		},
	})

	scores, _, err := NewScorer(c, 0).Score(context.Background(), testOptions(2), mappings, evidence)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	for i, s := range scores {
		assert.Equal(t, testOptions(2)[i].ID, s.OptionID)
		assert.Equal(t, 65, s.TotalScore)
		assert.Equal(t, "strong evidence", s.ScoreRationale)
	}

	assert.Contains(t, opt1Prompt, "- [ev_1] claim 1")
	assert.Contains(t, opt1Prompt, "- [ev_missing] Unknown claim")
	assert.NotContains(t, opt1Prompt, "[ev_2]")
}

func TestScore_FailureFailsStage(t *testing.T) {
	c := scriptedLLM(t, map[string]handler{
		"score_option": func(llm.Request) (any, error) { return nil, errors.New("boom") },
	})

	_, _, err := NewScorer(c, 0).Score(context.Background(), testOptions(2), nil, nil)
	require.Error(t, err)
}
