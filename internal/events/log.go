package events

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/model"
)

// LogSink writes events to a zap logger.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a LogSink. A nil logger uses zap.L().
func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.L()
	}
	return &LogSink{log: log}
}

// Progress implements Sink.
func (s *LogSink) Progress(_ context.Context, runID string, p model.Progress) {
	fields := []zap.Field{
		zap.String("run_id", runID),
		zap.Int("progress", p.Progress),
		zap.String("status", string(p.Status)),
	}
	if p.Status == model.ProgressFailed {
		s.log.Warn("pipeline: "+p.Message, fields...)
		return
	}
	s.log.Info("pipeline: "+p.Message, fields...)
}

// StageStarted implements Sink.
func (s *LogSink) StageStarted(_ context.Context, ev StageEvent) {
	s.log.Debug("pipeline: stage started",
		zap.String("run_id", ev.RunID),
		zap.String("decision_id", ev.DecisionID),
		zap.String("stage", ev.Stage),
	)
}

// StageCompleted implements Sink.
func (s *LogSink) StageCompleted(_ context.Context, ev StageEvent) {
	fields := []zap.Field{
		zap.String("run_id", ev.RunID),
		zap.String("decision_id", ev.DecisionID),
		zap.String("stage", ev.Stage),
		zap.Duration("duration", ev.Duration),
	}
	keys := make([]string, 0, len(ev.Counts))
	for k := range ev.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, zap.Int(k, ev.Counts[k]))
	}
	if ev.Err != nil {
		s.log.Error("pipeline: stage failed", append(fields, zap.Error(ev.Err))...)
		return
	}
	s.log.Info("pipeline: stage complete", fields...)
}
