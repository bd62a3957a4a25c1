package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/decision-cli/internal/model"
)

const jsonOnly = "Respond with a single JSON value and nothing else."

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n")
}

func plannerPrompt(in model.DecisionInput) string {
	return lines(
		"You are a research assistant planning web searches for a strategic decision.",
		"",
		"Decision: "+in.DecisionFrame,
		"Type: "+string(in.DecisionType),
		"Context: "+orNone(in.CompanyContext),
		"Constraints: "+in.ConstraintsText(),
		"",
		"Generate 8-20 targeted search queries that will find:",
		"- Market data and trends",
		"- Competitor information",
		"- Expert opinions and analysis",
		"- Case studies and examples",
		"- Risks and challenges",
		"- Success factors",
		"",
		"For each query, specify:",
		"- query: The exact search string",
		"- intent: What information you're looking for",
		"- freshness: 'realtime' for breaking developments, 'recent' for time-sensitive, 'any' for evergreen",
		"- domainHints: Preferred sources (optional)",
		"",
		"Output as JSON array.",
	)
}

const evidenceSystem = `You are extracting factual claims from a web page for decision analysis.
Extract 3-8 factual claims that are relevant to the decision.
For each claim:

claim: A specific, factual statement (not opinion)
sourceSnippet: The exact quote from the text supporting this claim
credibilityScore: 0-100 based on source quality and specificity
relevanceScore: 0-100 based on how relevant to the decision
freshness: 'current' (<3 months), 'recent' (3-12 months), 'dated' (>1 year)

Only include claims that are:

Factual and verifiable
Relevant to the decision
Supported by the source text

Output as JSON array.`

func evidencePrompt(in model.DecisionInput, page model.ExtractedContent) string {
	return lines(
		"Decision: "+in.DecisionFrame,
		"Source URL: "+page.URL,
		"Source Title: "+page.Title,
		"Content: "+page.Text,
	)
}

func evidenceDedupePrompt(cards []model.EvidenceCard) string {
	out := []string{
		"You are deduplicating similar factual claims.",
		"Group claims that are semantically equivalent or near-duplicates.",
		"Return JSON array of groups, each group is an array of indices.",
		"Only include groups with 2 or more indices.",
		"",
	}
	for i, c := range cards {
		out = append(out, fmt.Sprintf("%d: %s", i, c.Claim))
	}
	return lines(out...)
}

func composerPrompt(in model.DecisionInput, evidence []model.EvidenceCard) string {
	summary := make([]string, 0, len(evidence))
	for _, c := range evidence {
		summary = append(summary, fmt.Sprintf("- [%s] %s", c.ID, c.Claim))
	}
	return lines(
		"You are generating strategic options for a business decision.",
		"Decision: "+in.DecisionFrame,
		"Type: "+string(in.DecisionType),
		"Constraints: "+in.ConstraintsText(),
		"Evidence summary:",
		strings.Join(summary, "\n"),
		"Generate 4-6 DISTINCT strategic options. Each option must be:",
		"",
		"A clear COMMITMENT (not vague like \"consider options\")",
		"GROUNDED in the evidence provided",
		"MUTUALLY EXCLUSIVE from other options",
		"ACTIONABLE within the constraints",
		"",
		"For each option:",
		"",
		"title: Short, clear name",
		"summary: 2-3 sentences explaining the option",
		"commitsTo: What this option explicitly commits to (list)",
		"deprioritizes: What gets deprioritized if this is chosen (list)",
		"primaryUpside: The main benefit of this option",
		"primaryRisk: The main risk of this option",
		"reversibility: 1 (easily reversible) to 5 (irreversible)",
		"reversibilityExplanation: Why this reversibility rating",
		"groundedInEvidence: IDs of evidence cards that support this option",
		"",
		"Output as JSON array.",
	)
}

func dedupePrompt(opts []model.Option) string {
	out := []string{
		"You are merging cosmetically similar strategic options.",
		"If two options are >70% similar in intent, group them.",
		"For each group, choose the best articulated option to keep.",
		"Return JSON array with: indices (array of option indices), keepIndex, reason.",
		"Only include groups with 2+ indices.",
		"",
	}
	for i, o := range opts {
		out = append(out, fmt.Sprintf("%d: %s — %s", i, o.Title, o.Summary))
	}
	return lines(out...)
}

const mapperSystem = `For each piece of evidence, provide:

evidenceId: The ID of the evidence
relationship: 'supporting', 'contradicting', or 'unknown'
relevanceExplanation: Why this evidence relates (or doesn't) to this option
impactLevel: 'high', 'medium', or 'low' based on how much this evidence matters

Output as JSON array.`

func mapperPrompt(opt model.Option, evidence []model.EvidenceCard) string {
	out := []string{
		"For this strategic option:",
		"Title: " + opt.Title,
		"Summary: " + opt.Summary,
		"Classify each piece of evidence:",
	}
	for i, c := range evidence {
		out = append(out, fmt.Sprintf("Evidence %d: [%s] %s", i+1, c.ID, c.Claim))
	}
	return lines(out...)
}

func scorerPrompt(opt model.Option, mappings []model.EvidenceMapping, byID map[string]model.EvidenceCard) string {
	out := []string{
		"You are scoring a strategic option using transparent factors.",
		"Option: " + opt.Title,
		"Summary: " + opt.Summary,
		"",
		"Evidence mappings:",
	}
	for _, m := range mappings {
		claim := "Unknown claim"
		if c, ok := byID[m.EvidenceID]; ok {
			claim = c.Claim
		}
		out = append(out,
			fmt.Sprintf("- [%s] %s", m.EvidenceID, claim),
			"  Relationship: "+string(m.Relationship),
			"  Impact: "+string(m.ImpactLevel),
		)
	}
	out = append(out,
		"",
		"Score each factor from 0-100 and explain each in plain language.",
		"Provide scores for:",
		"- evidenceStrength (25%)",
		"- evidenceRecency (15%)",
		"- sourceReliability (15%)",
		"- corroboration (15%)",
		"- constraintFit (15%)",
		"- assumptionRisk (15%)",
		"",
		"Return JSON with factor scores and scoreRationale describing each factor.",
	)
	return lines(out...)
}

// maxRecommendMappings caps the mapping lines shown per option.
const maxRecommendMappings = 6

func scoreLine(s *model.OptionScore) string {
	if s == nil {
		return "n/a (n/a)"
	}
	return fmt.Sprintf("%d (%s)", s.TotalScore, s.ScoreRationale)
}

func scoresByOption(scores []model.OptionScore) map[string]*model.OptionScore {
	m := make(map[string]*model.OptionScore, len(scores))
	for i := range scores {
		m[scores[i].OptionID] = &scores[i]
	}
	return m
}

func recommenderPrompt(opts []model.Option, scores []model.OptionScore, mappings []model.EvidenceMapping) string {
	byOption := scoresByOption(scores)
	summaries := make([]string, 0, len(opts))
	for _, o := range opts {
		ms := model.MappingsFor(o.ID, mappings)
		if len(ms) > maxRecommendMappings {
			ms = ms[:maxRecommendMappings]
		}
		mappingLines := make([]string, 0, len(ms))
		for _, m := range ms {
			mappingLines = append(mappingLines, fmt.Sprintf("- %s (%s): %s", m.Relationship, m.ImpactLevel, m.RelevanceExplanation))
		}
		mappingSummary := strings.Join(mappingLines, "\n")
		if mappingSummary == "" {
			mappingSummary = "No mappings"
		}
		summaries = append(summaries, lines(
			fmt.Sprintf("Option %s: %s", o.ID, o.Title),
			"Summary: "+o.Summary,
			"Score: "+scoreLine(byOption[o.ID]),
			"Evidence summary:",
			mappingSummary,
		))
	}
	return lines(
		"Based on this analysis:",
		"Options with scores:",
		strings.Join(summaries, "\n\n"),
		"",
		"Generate a recommendation:",
		"",
		"Primary option: Which option do you recommend and why? Use the option ID as primaryOptionId.",
		"Confidence: How confident (0-100) and what drives uncertainty?",
		"Hedge: Is there a second-best option to consider? Under what conditions? Omit hedgeOptionId and hedgeCondition when there is none.",
		"Decision changers: What 3-5 future events would change this recommendation?",
		"Monitor triggers: What signals should be tracked post-decision?",
		"",
		"Be specific and actionable.",
	)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, "; ")
}

func briefPrompt(in BriefInput, evidenceRefs []string) string {
	d := in.Decision

	assumptions := make([]string, 0, len(d.Assumptions))
	for _, a := range d.Assumptions {
		kind := a.Type
		if kind == "" {
			kind = "assumption"
		}
		assumptions = append(assumptions, kind+": "+a.Statement)
	}
	stakeholders := make([]string, 0, len(d.Stakeholders))
	for _, s := range d.Stakeholders {
		if s.Role != "" {
			stakeholders = append(stakeholders, fmt.Sprintf("%s (%s)", s.Name, s.Role))
		} else {
			stakeholders = append(stakeholders, s.Name)
		}
	}

	byOption := scoresByOption(in.Scores)
	options := make([]string, 0, len(in.Options))
	for _, o := range in.Options {
		options = append(options, lines(
			fmt.Sprintf("- %s (%s)", o.Title, o.ID),
			"  Summary: "+o.Summary,
			"  Score: "+scoreLine(byOption[o.ID]),
		))
	}

	rec := in.Recommendation
	hedge := "Hedge option: None"
	if rec.HasHedge() {
		cond := ""
		if rec.HedgeCondition != nil {
			cond = *rec.HedgeCondition
		}
		hedge = fmt.Sprintf("Hedge option: %s (%s)", *rec.HedgeOptionID, cond)
	}

	return lines(
		"You are writing an executive decision brief with citations.",
		"All factual claims must cite sources using the provided citation IDs like [E1].",
		"Keep the brief concise (aim for a 2-page total).",
		"",
		"Decision: "+d.DecisionFrame,
		"Type: "+string(d.DecisionType),
		"Context: "+orNone(d.CompanyContext),
		"Constraints: "+d.ConstraintsText(),
		"Assumptions: "+joinOrNone(assumptions),
		"Stakeholders: "+joinOrNone(stakeholders),
		"",
		"Options with scores:",
		strings.Join(options, "\n"),
		"",
		"Recommendation:",
		"Primary option: "+rec.PrimaryOptionID,
		fmt.Sprintf("Confidence: %g", rec.PrimaryConfidence),
		"Rationale: "+rec.PrimaryRationale,
		hedge,
		"",
		"Evidence citations (use IDs in brackets):",
		strings.Join(evidenceRefs, "\n"),
		"",
		"Write these sections:",
		"- framing: Decision question, constraints, stakes",
		"- optionsConsidered: All options including rejected",
		"- evidenceSummary: Key evidence with citations",
		"- assumptionsLedger: Declared and implicit assumptions",
		"- recommendation: Primary + hedge + confidence",
		"- openQuestions: Unresolved unknowns",
		"- metadata: Owner, stakeholders, date",
		"",
		"Output as JSON with a sections object.",
	)
}
