package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/model"
)

// RunWriter is the slice of the store the StoreSink writes to.
type RunWriter interface {
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunProgress(ctx context.Context, runID string, progress int, message string) error
	FailRun(ctx context.Context, runID string, message string) error
}

// StoreSink persists progress, message and status to the run row.
type StoreSink struct {
	store RunWriter
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(st RunWriter) *StoreSink {
	return &StoreSink{store: st}
}

// Progress implements Sink. A failed update marks the run failed.
func (s *StoreSink) Progress(ctx context.Context, runID string, p model.Progress) {
	var err error
	if p.Status == model.ProgressFailed {
		err = s.store.FailRun(ctx, runID, p.Message)
	} else {
		err = s.store.UpdateRunProgress(ctx, runID, p.Progress, p.Message)
	}
	if err != nil {
		zap.L().Warn("events: persist progress failed",
			zap.String("run_id", runID),
			zap.Int("progress", p.Progress),
			zap.Error(err),
		)
	}
}

// StageStarted implements Sink.
func (s *StoreSink) StageStarted(ctx context.Context, ev StageEvent) {
	if ev.Status == "" {
		return
	}
	if err := s.store.UpdateRunStatus(ctx, ev.RunID, ev.Status); err != nil {
		zap.L().Warn("events: persist status failed",
			zap.String("run_id", ev.RunID),
			zap.String("status", string(ev.Status)),
			zap.Error(err),
		)
	}
}

// StageCompleted implements Sink.
func (s *StoreSink) StageCompleted(context.Context, StageEvent) {}
