package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/internal/model"
)

// MetricsSink records stage timings, failures and counts as Prometheus
// metrics.
type MetricsSink struct {
	stageDuration *prometheus.HistogramVec
	stageFailures *prometheus.CounterVec
	stageItems    *prometheus.CounterVec
	progress      prometheus.Gauge
	runs          *prometheus.CounterVec
}

// NewMetricsSink creates the metrics and registers them with reg.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "decision",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage", "outcome"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "decision",
			Name:      "stage_failures_total",
			Help:      "Pipeline stages that ended in a fatal error.",
		}, []string{"stage"}),
		stageItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "decision",
			Name:      "stage_items_total",
			Help:      "Items counted at the end of each stage.",
		}, []string{"stage", "kind"}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "decision",
			Name:      "last_progress_percent",
			Help:      "Most recent progress value reported by any run.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "decision",
			Name:      "runs_finished_total",
			Help:      "Runs that reached a terminal progress status.",
		}, []string{"status"}),
	}
	for _, c := range []prometheus.Collector{s.stageDuration, s.stageFailures, s.stageItems, s.progress, s.runs} {
		if err := reg.Register(c); err != nil {
			return nil, eris.Wrap(err, "events: register metric")
		}
	}
	return s, nil
}

// Progress implements Sink.
func (s *MetricsSink) Progress(_ context.Context, _ string, p model.Progress) {
	s.progress.Set(float64(p.Progress))
	if p.Status == model.ProgressCompleted || p.Status == model.ProgressFailed {
		s.runs.WithLabelValues(string(p.Status)).Inc()
	}
}

// StageStarted implements Sink.
func (s *MetricsSink) StageStarted(context.Context, StageEvent) {}

// StageCompleted implements Sink.
func (s *MetricsSink) StageCompleted(_ context.Context, ev StageEvent) {
	outcome := "ok"
	if ev.Err != nil {
		outcome = "error"
		s.stageFailures.WithLabelValues(ev.Stage).Inc()
	}
	s.stageDuration.WithLabelValues(ev.Stage, outcome).Observe(ev.Duration.Seconds())
	for kind, n := range ev.Counts {
		if n > 0 {
			s.stageItems.WithLabelValues(ev.Stage, kind).Add(float64(n))
		}
	}
}
