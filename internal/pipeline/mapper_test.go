package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

// mappingsAll marks every card as supporting.
func mappingsAll(evidence []model.EvidenceCard) []mappingDraft {
	out := make([]mappingDraft, len(evidence))
	for i, c := range evidence {
		out[i] = mappingDraft{
			EvidenceID:           c.ID,
			Relationship:         model.RelationshipSupporting,
			RelevanceExplanation: "backs " + c.Claim,
			ImpactLevel:          model.ImpactMedium,
		}
	}
	return out
}

func TestMap_OneCallPerOptionInOrder(t *testing.T) {
	evidence := evidenceCards(3)
	c := scriptedLLM(t, map[string]handler{
		"map_evidence": func(req llm.Request) (any, error) {
			assert.Equal(t, mapperSystem, req.System)
			assert.Contains(t, req.Prompt, "Evidence 3: [ev_3] claim 3")
			return mappingsAll(evidence), nil
		},
	})
	opts := testOptions(4)

	mappings, usage, err := NewMapper(c, 0).Map(context.Background(), opts, evidence)
	require.NoError(t, err)
	require.Len(t, mappings, 12)
	c.AssertNumberOfCalls(t, "CompleteJSON", 4)
	assert.Equal(t, 400, usage.InputTokens)

	for i, m := range mappings {
		assert.Equal(t, opts[i/3].ID, m.OptionID)
		assert.Equal(t, evidence[i%3].ID, m.EvidenceID)
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	c := scriptedLLM(t, map[string]handler{
		"map_evidence": func(llm.Request) (any, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return []mappingDraft{}, nil
		},
	})

	_, _, err := NewMapper(c, 2).Map(context.Background(), testOptions(6), evidenceCards(1))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestMap_OptionFailureFailsStage(t *testing.T) {
	c := scriptedLLM(t, map[string]handler{
		"map_evidence": func(req llm.Request) (any, error) {
			if strings.Contains(req.Prompt, "Title: Option 2\n") {
				return nil, errors.New("rate limited")
			}
			return []mappingDraft{}, nil
		},
	})

	_, _, err := NewMapper(c, 0).Map(context.Background(), testOptions(3), evidenceCards(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opt_2")
	// siblings still run to completion
	c.AssertNumberOfCalls(t, "CompleteJSON", 3)
}
