package model

import "time"

// Citation links a bracket ID in the brief to its evidence source.
type Citation struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	AccessedAt  time.Time `json:"accessedAt"`
	SnippetHash string    `json:"snippetHash"`
}

// BriefSections are the seven narrative sections of a brief.
type BriefSections struct {
	Framing           string `json:"framing"`
	OptionsConsidered string `json:"optionsConsidered"`
	EvidenceSummary   string `json:"evidenceSummary"`
	AssumptionsLedger string `json:"assumptionsLedger"`
	Recommendation    string `json:"recommendation"`
	OpenQuestions     string `json:"openQuestions"`
	Metadata          string `json:"metadata"`
}

// All returns the section bodies in rendering order.
func (s BriefSections) All() []string {
	return []string{
		s.Framing,
		s.OptionsConsidered,
		s.EvidenceSummary,
		s.AssumptionsLedger,
		s.Recommendation,
		s.OpenQuestions,
		s.Metadata,
	}
}

// Brief is the terminal artifact of a run.
type Brief struct {
	ID               string        `json:"id"`
	DecisionID       string        `json:"decisionId"`
	Sections         BriefSections `json:"sections"`
	Citations        []Citation    `json:"citations"`
	CitationFallback bool          `json:"citationFallback,omitempty"`
	GeneratedAt      time.Time     `json:"generatedAt"`
	Markdown         string        `json:"markdown"`

	// UnresolvedCitations are E-numbers the text cites that match no evidence.
	UnresolvedCitations []string `json:"unresolvedCitations,omitempty"`
}

// BriefID derives the brief ID from the decision ID.
func BriefID(decisionID string) string {
	return "brief_" + decisionID
}
