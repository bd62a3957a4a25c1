package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackWindowHours: 24, FailureRateThreshold: 0.10}
	checker := NewChecker(NewCollector(&fakeSource{}, 0), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer ts.Close()

	stale := time.Now().Add(-3 * time.Hour)
	src := &fakeSource{runs: []model.Run{
		{ID: "r1", Status: model.RunStatusScoring, CreatedAt: stale, UpdatedAt: stale},
	}}
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackWindowHours: 24, StuckAfterMins: 60}
	checker := NewChecker(NewCollector(src, time.Hour), NewAlerter(cfg), cfg)

	checker.check(context.Background())
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_ReportsStuckRunOncePerStage(t *testing.T) {
	var mu sync.Mutex
	var got []Alert
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Alert
		_ = json.NewDecoder(r.Body).Decode(&a)
		mu.Lock()
		got = append(got, a)
		mu.Unlock()
	}))
	defer ts.Close()

	stale := time.Now().Add(-3 * time.Hour)
	src := &fakeSource{runs: []model.Run{
		{ID: "r1", DecisionID: "dec_a", Status: model.RunStatusScoring, CreatedAt: stale, UpdatedAt: stale},
	}}
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackWindowHours: 24, StuckAfterMins: 60}
	checker := NewChecker(NewCollector(src, time.Hour), NewAlerter(cfg), cfg)
	ctx := context.Background()

	require.Len(t, checker.check(ctx), 1)
	assert.Empty(t, checker.check(ctx), "same run at the same stage is not re-reported")

	src.runs[0].Status = model.RunStatusRecommending
	sent := checker.check(ctx)
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"r1"}, sent[0].Details["new_run_ids"])

	src.runs = append(src.runs, model.Run{ID: "r2", DecisionID: "dec_b", Status: model.RunStatusMapping, CreatedAt: stale, UpdatedAt: stale})
	sent = checker.check(ctx)
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"r2"}, sent[0].Details["new_run_ids"])

	src.runs = src.runs[1:]
	assert.Empty(t, checker.check(ctx))
	assert.NotContains(t, checker.reported, "r1")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	for _, a := range got {
		assert.Equal(t, AlertStuckRuns, a.Type)
	}
}

func TestChecker_ThresholdAlertFiresOnTransition(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
	}))
	defer ts.Close()

	recent := time.Now().Add(-time.Hour)
	expensive := model.Run{
		ID: "r1", Status: model.RunStatusComplete, CreatedAt: recent, UpdatedAt: recent,
		Result: &model.AnalysisResult{TotalCost: 80},
	}
	src := &fakeSource{runs: []model.Run{expensive}}
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, LookbackWindowHours: 24, CostThresholdUSD: 50}
	checker := NewChecker(NewCollector(src, time.Hour), NewAlerter(cfg), cfg)
	ctx := context.Background()

	sent := checker.check(ctx)
	require.Len(t, sent, 1)
	assert.Equal(t, AlertCostOverrun, sent[0].Type)
	assert.Empty(t, checker.check(ctx))

	src.runs = nil
	assert.Empty(t, checker.check(ctx))
	assert.False(t, checker.firing[AlertCostOverrun])

	src.runs = []model.Run{expensive}
	require.Len(t, checker.check(ctx), 1)
	assert.Equal(t, int32(2), received.Load())
}

func TestChecker_CollectErrorSendsNothing(t *testing.T) {
	cfg := config.MonitoringConfig{LookbackWindowHours: 24}
	checker := NewChecker(NewCollector(&fakeSource{listErr: errors.New("db down")}, 0), NewAlerter(cfg), cfg)
	assert.Nil(t, checker.check(context.Background()))
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(&fakeSource{}, 0), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}
