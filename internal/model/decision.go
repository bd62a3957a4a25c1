package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// DecisionType classifies the strategic question being analyzed.
type DecisionType string

const (
	DecisionTypeProductBet  DecisionType = "product_bet"
	DecisionTypeMarketEntry DecisionType = "market_entry"
	DecisionTypeInvestment  DecisionType = "investment"
	DecisionTypePlatform    DecisionType = "platform"
	DecisionTypeOrgModel    DecisionType = "org_model"
)

// AllDecisionTypes returns all defined decision types.
func AllDecisionTypes() []DecisionType {
	return []DecisionType{
		DecisionTypeProductBet,
		DecisionTypeMarketEntry,
		DecisionTypeInvestment,
		DecisionTypePlatform,
		DecisionTypeOrgModel,
	}
}

// Valid reports whether t is a known decision type.
func (t DecisionType) Valid() bool {
	for _, v := range AllDecisionTypes() {
		if v == t {
			return true
		}
	}
	return false
}

// Constraint is a user-declared limit on acceptable options.
type Constraint struct {
	Category    string `json:"category" yaml:"category"`
	Description string `json:"description" yaml:"description"`
}

// DecisionInput is the immutable input to the whole pipeline.
type DecisionInput struct {
	DecisionFrame  string       `json:"decisionFrame" yaml:"decisionFrame"`
	DecisionType   DecisionType `json:"decisionType" yaml:"decisionType"`
	CompanyContext string       `json:"companyContext,omitempty" yaml:"companyContext,omitempty"`
	Constraints    []Constraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// Validate rejects an empty frame and an unknown decision type.
func (d DecisionInput) Validate() error {
	if strings.TrimSpace(d.DecisionFrame) == "" {
		return eris.New("model: decision frame is required")
	}
	if !d.DecisionType.Valid() {
		return eris.Errorf("model: unknown decision type %q", d.DecisionType)
	}
	return nil
}

// ConstraintsText renders constraints as "category: description" pairs
// joined by "; ", or "None".
func (d DecisionInput) ConstraintsText() string {
	if len(d.Constraints) == 0 {
		return "None"
	}
	parts := make([]string, 0, len(d.Constraints))
	for _, c := range d.Constraints {
		parts = append(parts, c.Category+": "+c.Description)
	}
	return strings.Join(parts, "; ")
}

// Assumption is a declared or implicit belief the decision rests on.
type Assumption struct {
	Type      string `json:"type,omitempty" yaml:"type,omitempty"`
	Statement string `json:"statement" yaml:"statement"`
}

// Stakeholder is a person affected by or accountable for the decision.
type Stakeholder struct {
	Name string `json:"name" yaml:"name"`
	Role string `json:"role,omitempty" yaml:"role,omitempty"`
}

// Owner is the accountable decision maker.
type Owner struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// FullDecision is the decision record with the context the brief writer
// needs beyond the pipeline input.
type FullDecision struct {
	DecisionID    string `json:"id" yaml:"id"`
	Title         string `json:"title,omitempty" yaml:"title,omitempty"`
	DecisionInput `yaml:",inline"`
	Assumptions   []Assumption  `json:"assumptions,omitempty" yaml:"assumptions,omitempty"`
	Stakeholders  []Stakeholder `json:"stakeholders,omitempty" yaml:"stakeholders,omitempty"`
	Owner         *Owner        `json:"owner,omitempty" yaml:"owner,omitempty"`
}
