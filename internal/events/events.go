// Package events reports pipeline progress and stage timings to logs,
// Prometheus and the run store.
package events

import (
	"context"
	"time"

	"github.com/sells-group/decision-cli/internal/model"
)

// Milestone is a fixed progress checkpoint.
type Milestone struct {
	Progress int
	Message  string
}

// Progress milestones emitted by the pipeline, in order.
var (
	MilestoneSearching     = Milestone{20, "Searching for evidence..."}
	MilestoneExtracting    = Milestone{40, "Extracting content..."}
	MilestoneGenerating    = Milestone{60, "Generating evidence cards..."}
	MilestoneScanComplete  = Milestone{70, "Evidence scan complete"}
	MilestoneOptions       = Milestone{80, "Options generated"}
	MilestoneMapping       = Milestone{85, "Evidence mapping complete"}
	MilestoneScoring       = Milestone{90, "Option scoring complete"}
	MilestoneRecommended   = Milestone{95, "Recommendation generated"}
	MilestoneBriefComplete = Milestone{100, "Decision brief generated"}
)

// Update converts m into a progress update. The final milestone carries
// the completed status.
func (m Milestone) Update() model.Progress {
	status := model.ProgressRunning
	if m.Progress >= 100 {
		status = model.ProgressCompleted
	}
	return model.Progress{Progress: m.Progress, Message: m.Message, Status: status}
}

// Failed builds the progress update for a fatal error at the given point.
func Failed(progress int, message string) model.Progress {
	return model.Progress{Progress: progress, Message: message, Status: model.ProgressFailed}
}

// StageEvent describes one stage boundary.
type StageEvent struct {
	RunID      string
	DecisionID string
	Stage      string
	// Status is the run status the stage moves the run into; empty leaves
	// the run status alone.
	Status   model.RunStatus
	Counts   map[string]int
	Duration time.Duration
	Err      error
}

// Sink receives progress and stage events. Implementations log their own
// failures; a sink never fails the pipeline.
type Sink interface {
	Progress(ctx context.Context, runID string, p model.Progress)
	StageStarted(ctx context.Context, ev StageEvent)
	StageCompleted(ctx context.Context, ev StageEvent)
}

// Multi fans every event out to each sink in order.
type Multi []Sink

// Progress implements Sink.
func (m Multi) Progress(ctx context.Context, runID string, p model.Progress) {
	for _, s := range m {
		s.Progress(ctx, runID, p)
	}
}

// StageStarted implements Sink.
func (m Multi) StageStarted(ctx context.Context, ev StageEvent) {
	for _, s := range m {
		s.StageStarted(ctx, ev)
	}
}

// StageCompleted implements Sink.
func (m Multi) StageCompleted(ctx context.Context, ev StageEvent) {
	for _, s := range m {
		s.StageCompleted(ctx, ev)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Progress(context.Context, string, model.Progress) {}
func (Nop) StageStarted(context.Context, StageEvent)         {}
func (Nop) StageCompleted(context.Context, StageEvent)       {}
