package model

import "time"

// Freshness is a search-freshness hint on a query plan.
type Freshness string

const (
	FreshnessAny      Freshness = "any"
	FreshnessRecent   Freshness = "recent"
	FreshnessRealtime Freshness = "realtime"
)

// QueryPlan is one planned web search.
type QueryPlan struct {
	Query       string    `json:"query"`
	Intent      string    `json:"intent"`
	Freshness   Freshness `json:"freshness"`
	DomainHints []string  `json:"domainHints,omitempty"`
}

// URLCandidate is a scored search hit.
type URLCandidate struct {
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Snippet       string     `json:"snippet"`
	Query         string     `json:"query"`
	Intent        string     `json:"intent"`
	Score         int        `json:"score"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
	Freshness     Freshness  `json:"-"`
}

// ExtractedContent is the cleaned text of one scraped candidate.
type ExtractedContent struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Text         string    `json:"text"`
	WordCount    int       `json:"wordCount"`
	ExtractedAt  time.Time `json:"extractedAt"`
	SourceQuery  string    `json:"sourceQuery"`
	SourceIntent string    `json:"sourceIntent"`
	Source       string    `json:"source,omitempty"`
}

// ClaimFreshness is the recency bucket attached to a claim.
type ClaimFreshness string

const (
	ClaimCurrent ClaimFreshness = "current"
	ClaimRecent  ClaimFreshness = "recent"
	ClaimDated   ClaimFreshness = "dated"
)

// EvidenceCard is an atomic factual claim with a traceable source.
type EvidenceCard struct {
	ID               string         `json:"id"`
	Claim            string         `json:"claim"`
	SourceURL        string         `json:"sourceUrl"`
	SourceTitle      string         `json:"sourceTitle"`
	SourceSnippet    string         `json:"sourceSnippet"`
	CredibilityScore float64        `json:"credibilityScore"`
	RelevanceScore   float64        `json:"relevanceScore"`
	Freshness        ClaimFreshness `json:"freshness"`
	ExtractedAt      time.Time      `json:"extractedAt"`
}

// Rank is the retention score: 0.6·relevance + 0.4·credibility.
func (e EvidenceCard) Rank() float64 {
	return 0.6*e.RelevanceScore + 0.4*e.CredibilityScore
}

// EvidenceByID indexes cards by ID.
func EvidenceByID(cards []EvidenceCard) map[string]EvidenceCard {
	m := make(map[string]EvidenceCard, len(cards))
	for _, c := range cards {
		m[c.ID] = c
	}
	return m
}
