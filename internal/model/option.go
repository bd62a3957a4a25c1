package model

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Option is a mutually exclusive candidate course of action.
type Option struct {
	ID                       string   `json:"id"`
	Title                    string   `json:"title"`
	Summary                  string   `json:"summary"`
	CommitsTo                []string `json:"commitsTo"`
	Deprioritizes            []string `json:"deprioritizes"`
	PrimaryUpside            string   `json:"primaryUpside"`
	PrimaryRisk              string   `json:"primaryRisk"`
	Reversibility            int      `json:"reversibility"`
	ReversibilityExplanation string   `json:"reversibilityExplanation"`
	GroundedInEvidence       []string `json:"groundedInEvidence"`
}

var titleFolder = cases.Fold()

// NormalizedTitle is the title folded to lower case with whitespace collapsed,
// used for distinctness checks.
func (o Option) NormalizedTitle() string {
	return NormalizeText(o.Title)
}

// NormalizeText applies NFKC normalization, case folding and whitespace
// collapsing.
func NormalizeText(s string) string {
	s = titleFolder.String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// TitlesDistinct reports whether all option titles are pairwise distinct
// under NormalizedTitle.
func TitlesDistinct(opts []Option) bool {
	seen := make(map[string]struct{}, len(opts))
	for _, o := range opts {
		k := o.NormalizedTitle()
		if _, ok := seen[k]; ok {
			return false
		}
		seen[k] = struct{}{}
	}
	return true
}

// Relationship is how a piece of evidence bears on an option.
type Relationship string

const (
	RelationshipSupporting    Relationship = "supporting"
	RelationshipContradicting Relationship = "contradicting"
	RelationshipUnknown       Relationship = "unknown"
)

// ImpactLevel is how much a piece of evidence matters to an option.
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "high"
	ImpactMedium ImpactLevel = "medium"
	ImpactLow    ImpactLevel = "low"
)

// EvidenceMapping classifies one evidence item against one option.
type EvidenceMapping struct {
	OptionID             string       `json:"optionId"`
	EvidenceID           string       `json:"evidenceId"`
	Relationship         Relationship `json:"relationship"`
	RelevanceExplanation string       `json:"relevanceExplanation"`
	ImpactLevel          ImpactLevel  `json:"impactLevel"`
}

// MappingsFor returns the mappings belonging to optionID, in input order.
func MappingsFor(optionID string, mappings []EvidenceMapping) []EvidenceMapping {
	var out []EvidenceMapping
	for _, m := range mappings {
		if m.OptionID == optionID {
			out = append(out, m)
		}
	}
	return out
}

// Factor weights for ScoreFactors.Total.
const (
	WeightEvidenceStrength  = 0.25
	WeightEvidenceRecency   = 0.15
	WeightSourceReliability = 0.15
	WeightCorroboration     = 0.15
	WeightConstraintFit     = 0.15
	WeightAssumptionRisk    = 0.15
)

// ScoreFactors are the six 0–100 scoring factors.
type ScoreFactors struct {
	EvidenceStrength  float64 `json:"evidenceStrength"`
	EvidenceRecency   float64 `json:"evidenceRecency"`
	SourceReliability float64 `json:"sourceReliability"`
	Corroboration     float64 `json:"corroboration"`
	ConstraintFit     float64 `json:"constraintFit"`
	AssumptionRisk    float64 `json:"assumptionRisk"`
}

// Total is the weighted sum rounded to the nearest integer.
func (f ScoreFactors) Total() int {
	sum := f.EvidenceStrength*WeightEvidenceStrength +
		f.EvidenceRecency*WeightEvidenceRecency +
		f.SourceReliability*WeightSourceReliability +
		f.Corroboration*WeightCorroboration +
		f.ConstraintFit*WeightConstraintFit +
		f.AssumptionRisk*WeightAssumptionRisk
	return int(math.Round(sum))
}

// OptionScore is the transparent score of one option.
type OptionScore struct {
	OptionID       string       `json:"optionId"`
	Factors        ScoreFactors `json:"factors"`
	TotalScore     int          `json:"totalScore"`
	ScoreRationale string       `json:"scoreRationale"`
}

// Likelihood of a decision changer occurring.
type Likelihood string

const (
	LikelihoodLow    Likelihood = "low"
	LikelihoodMedium Likelihood = "medium"
	LikelihoodHigh   Likelihood = "high"
)

// DecisionChanger is a future event that would flip the recommendation.
type DecisionChanger struct {
	Condition  string     `json:"condition"`
	WouldFavor string     `json:"wouldFavor"`
	Likelihood Likelihood `json:"likelihood"`
}

// Frequency is how often a monitor trigger is checked.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// MonitorTrigger is a post-decision signal to track.
type MonitorTrigger struct {
	Signal    string    `json:"signal"`
	Source    string    `json:"source"`
	Threshold string    `json:"threshold"`
	Frequency Frequency `json:"frequency"`
}

// Recommendation is the model's primary and optional hedge choice.
type Recommendation struct {
	PrimaryOptionID   string            `json:"primaryOptionId"`
	PrimaryConfidence float64           `json:"primaryConfidence"`
	PrimaryRationale  string            `json:"primaryRationale"`
	HedgeOptionID     *string           `json:"hedgeOptionId,omitempty"`
	HedgeCondition    *string           `json:"hedgeCondition,omitempty"`
	DecisionChangers  []DecisionChanger `json:"decisionChangers"`
	MonitorTriggers   []MonitorTrigger  `json:"monitorTriggers"`
}

// HasHedge reports whether a hedge option is present; renderers use it as
// a display toggle.
func (r Recommendation) HasHedge() bool {
	return r.HedgeOptionID != nil && *r.HedgeOptionID != ""
}
