package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusScanning     RunStatus = "scanning"
	RunStatusOptions      RunStatus = "options"
	RunStatusMapping      RunStatus = "mapping"
	RunStatusScoring      RunStatus = "scoring"
	RunStatusRecommending RunStatus = "recommending"
	RunStatusWriting      RunStatus = "writing"
	RunStatusComplete     RunStatus = "complete"
	RunStatusFailed       RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// Run represents a single analysis run for a decision.
type Run struct {
	ID         string          `json:"id"`
	DecisionID string          `json:"decision_id"`
	Input      FullDecision    `json:"input"`
	Status     RunStatus       `json:"status"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	Result     *AnalysisResult `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// RunPhase represents a stage execution within a run.
type RunPhase struct {
	ID        string       `json:"id"`
	RunID     string       `json:"run_id"`
	Name      string       `json:"name"`
	Status    PhaseStatus  `json:"status"`
	Result    *PhaseResult `json:"result,omitempty"`
	StartedAt time.Time    `json:"started_at"`
}

// PhaseStatus represents the current state of a pipeline stage.
type PhaseStatus string

const (
	PhaseStatusRunning  PhaseStatus = "running"
	PhaseStatusComplete PhaseStatus = "complete"
	PhaseStatusFailed   PhaseStatus = "failed"
	PhaseStatusSkipped  PhaseStatus = "skipped"
)

// PhaseResult holds the outcome of a pipeline stage.
type PhaseResult struct {
	Name       string         `json:"name"`
	Status     PhaseStatus    `json:"status"`
	Duration   int64          `json:"duration_ms"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TokenUsage tracks LLM token consumption.
type TokenUsage struct {
	InputTokens         int     `json:"input_tokens"`
	OutputTokens        int     `json:"output_tokens"`
	CacheCreationTokens int     `json:"cache_creation_tokens"`
	CacheReadTokens     int     `json:"cache_read_tokens"`
	Cost                float64 `json:"cost"`
}

// Add merges token usage from another instance.
func (t *TokenUsage) Add(other TokenUsage) {
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
	t.CacheCreationTokens += other.CacheCreationTokens
	t.CacheReadTokens += other.CacheReadTokens
	t.Cost += other.Cost
}

// ProgressStatus is the coarse status attached to a progress update.
type ProgressStatus string

const (
	ProgressRunning   ProgressStatus = "running"
	ProgressCompleted ProgressStatus = "completed"
	ProgressFailed    ProgressStatus = "failed"
)

// Progress is a UI-visible progress update.
type Progress struct {
	Progress int            `json:"progress"`
	Message  string         `json:"message"`
	Status   ProgressStatus `json:"status"`
}

// AnalysisResult is the final output of the pipeline.
type AnalysisResult struct {
	RunID          string            `json:"run_id"`
	DecisionID     string            `json:"decision_id"`
	Evidence       []EvidenceCard    `json:"evidence"`
	Options        []Option          `json:"options"`
	Mappings       []EvidenceMapping `json:"mappings"`
	Scores         []OptionScore     `json:"scores"`
	Recommendation *Recommendation   `json:"recommendation,omitempty"`
	Brief          *Brief            `json:"brief,omitempty"`
	Phases         []PhaseResult     `json:"phases"`
	TokenUsage     TokenUsage        `json:"token_usage"`
	TotalCost      float64           `json:"total_cost"`
}
