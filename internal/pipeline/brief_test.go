package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/llm"
	"github.com/sells-group/decision-cli/internal/model"
)

func testBriefInput() BriefInput {
	hedge, cond := "opt_2", "if partner terms slip"
	return BriefInput{
		Decision: model.FullDecision{
			DecisionID:    "dec_eu",
			DecisionInput: testDecision(),
			Assumptions: []model.Assumption{
				{Statement: "Demand holds through 2026"},
				{Type: "declared", Statement: "Hiring is feasible"},
			},
			Stakeholders: []model.Stakeholder{{Name: "Dana", Role: "CFO"}, {Name: "Board"}},
		},
		Options: testOptions(3),
		Scores:  []model.OptionScore{{OptionID: "opt_1", TotalScore: 68, ScoreRationale: "solid"}},
		Recommendation: model.Recommendation{
			PrimaryOptionID:   "opt_1",
			PrimaryConfidence: 72.5,
			PrimaryRationale:  "best coverage",
			HedgeOptionID:     &hedge,
			HedgeCondition:    &cond,
		},
		Evidence: evidenceCards(3),
	}
}

func sectionsCiting(refs string) model.BriefSections {
	return model.BriefSections{
		Framing:           "Should we enter?",
		OptionsConsidered: "Three options.",
		EvidenceSummary:   "Demand is growing " + refs,
		AssumptionsLedger: "Demand holds.",
		Recommendation:    "Partner first.",
		OpenQuestions:     "Pricing.",
		Metadata:          "Owner: Dana",
	}
}

func TestWrite_KeepsOnlyCitedEvidence(t *testing.T) {
	var prompt string
	c := scriptedLLM(t, map[string]handler{
		"write_brief": func(req llm.Request) (any, error) {
			prompt = req.Prompt
			return briefDraft{Sections: sectionsCiting("[E1] and [E3], again [E1]")}, nil
		},
	})
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	w := NewBriefWriter(c)
	w.now = func() time.Time { return now }

	in := testBriefInput()
	brief, _, err := w.Write(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "brief_dec_eu", brief.ID)
	assert.Equal(t, "dec_eu", brief.DecisionID)
	assert.False(t, brief.CitationFallback)
	assert.Equal(t, now.UTC(), brief.GeneratedAt)

	require.Len(t, brief.Citations, 2)
	assert.Equal(t, "E1", brief.Citations[0].ID)
	assert.Equal(t, "E3", brief.Citations[1].ID)
	assert.Equal(t, in.Evidence[2].SourceURL, brief.Citations[1].URL)
	sum := sha256.Sum256([]byte("snippet 1"))
	assert.Equal(t, hex.EncodeToString(sum[:]), brief.Citations[0].SnippetHash)

	assert.Contains(t, brief.Markdown, "- [E3] Source 3 — https://src3.com")
	assert.NotContains(t, brief.Markdown, "[E2] Source 2")

	assert.Contains(t, prompt, `[E2] Source 2 — https://src2.com — "snippet 2"`)
	assert.Contains(t, prompt, "Assumptions: assumption: Demand holds through 2026; declared: Hiring is feasible")
	assert.Contains(t, prompt, "Stakeholders: Dana (CFO); Board")
	assert.Contains(t, prompt, "Confidence: 72.5")
	assert.Contains(t, prompt, "Hedge option: opt_2 (if partner terms slip)")
	assert.Contains(t, prompt, "  Score: n/a (n/a)")
}

func TestWrite_NoCitationsListsAllAndFlags(t *testing.T) {
	var prompt string
	c := scriptedLLM(t, map[string]handler{
		"write_brief": func(req llm.Request) (any, error) {
			prompt = req.Prompt
			return briefDraft{Sections: sectionsCiting("with no references")}, nil
		},
	})

	in := testBriefInput()
	in.Recommendation.HedgeOptionID = nil

	brief, _, err := NewBriefWriter(c).Write(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, brief.CitationFallback)
	assert.Len(t, brief.Citations, 3)
	assert.Contains(t, prompt, "Hedge option: None")
}

func TestWrite_FlagsUnresolvedCitations(t *testing.T) {
	c := scriptedLLM(t, map[string]handler{
		"write_brief": func(llm.Request) (any, error) {
			return briefDraft{Sections: sectionsCiting("[E2] [E02] [E99]")}, nil
		},
	})

	brief, _, err := NewBriefWriter(c).Write(context.Background(), testBriefInput())
	require.NoError(t, err)
	assert.False(t, brief.CitationFallback)
	assert.Equal(t, []string{"E02", "E99"}, brief.UnresolvedCitations)
	require.Len(t, brief.Citations, 1)
	assert.Equal(t, "E2", brief.Citations[0].ID)
}

func TestUnresolvedIDs(t *testing.T) {
	used := map[string]struct{}{"E1": {}, "E3": {}, "E4": {}, "E0": {}, "E01": {}}
	assert.Equal(t, []string{"E0", "E01", "E4"}, unresolvedIDs(used, 3))
	assert.Empty(t, unresolvedIDs(map[string]struct{}{}, 3))
}

func TestWrite_Failure(t *testing.T) {
	c := scriptedLLM(t, map[string]handler{
		"write_brief": func(llm.Request) (any, error) { return nil, errors.New("timeout") },
	})

	_, _, err := NewBriefWriter(c).Write(context.Background(), testBriefInput())
	require.Error(t, err)
}

func TestRenderMarkdown_Headings(t *testing.T) {
	md := RenderMarkdown(sectionsCiting("[E1]"), []model.Citation{{ID: "E1", Title: "Source 1", URL: "https://src1.com"}})

	headings := []string{
		"# Decision Brief",
		"## Framing",
		"## Options Considered",
		"## Evidence Summary",
		"## Assumptions Ledger",
		"## Recommendation",
		"## Open Questions",
		"## Metadata",
		"## Citations",
	}
	last := -1
	for _, h := range headings {
		idx := strings.Index(md, h+"\n")
		require.GreaterOrEqual(t, idx, 0, h)
		assert.Greater(t, idx, last, h)
		last = idx
	}
	assert.True(t, strings.HasSuffix(md, "- [E1] Source 1 — https://src1.com"))
}

func TestCitedIDs(t *testing.T) {
	ids := citedIDs(model.BriefSections{Framing: "[E1] [E12]", Metadata: "E4 [E] [E1]"})
	assert.Equal(t, map[string]struct{}{"E1": {}, "E12": {}}, ids)
}
