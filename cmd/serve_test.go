package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/monitoring"
	"github.com/sells-group/decision-cli/internal/pipeline"
	"github.com/sells-group/decision-cli/internal/store"
)

// fakeAnalyzer creates real run rows and completes them with a canned brief.
type fakeAnalyzer struct {
	st      store.Store
	execErr error
}

func (f *fakeAnalyzer) Start(ctx context.Context, decisionID string, d model.FullDecision) (pipeline.RunRef, error) {
	d.DecisionID = decisionID
	run, err := f.st.CreateRun(ctx, d)
	if err != nil {
		return pipeline.RunRef{}, err
	}
	return pipeline.RunRef{RunID: run.ID, DecisionID: decisionID}, nil
}

func (f *fakeAnalyzer) Execute(ctx context.Context, ref pipeline.RunRef, _ model.FullDecision) (*model.AnalysisResult, error) {
	if f.execErr != nil {
		_ = f.st.FailRun(ctx, ref.RunID, f.execErr.Error())
		return nil, f.execErr
	}
	res := &model.AnalysisResult{
		RunID:      ref.RunID,
		DecisionID: ref.DecisionID,
		Brief: &model.Brief{
			ID:         model.BriefID(ref.DecisionID),
			DecisionID: ref.DecisionID,
			Markdown:   "# Decision Brief\n\nEnter the EU market.\n",
		},
	}
	return res, f.st.UpdateRunResult(ctx, ref.RunID, res)
}

func newTestAPI(t *testing.T) (*apiServer, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	return &apiServer{
		store:     st,
		analyzer:  &fakeAnalyzer{st: st},
		collector: monitoring.NewCollector(st, time.Hour),
		bg:        context.Background(),
	}, st
}

func do(t *testing.T, h http.Handler, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func validDecision() map[string]any {
	return map[string]any{
		"title":         "EU expansion",
		"decisionFrame": "Should we enter the EU market in 2027?",
		"decisionType":  "market_entry",
	}
}

func TestRouter_Health(t *testing.T) {
	api, _ := newTestAPI(t)
	rr := do(t, newRouter(api), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestRouter_AnalyzeCompletesRun(t *testing.T) {
	api, _ := newTestAPI(t)
	h := newRouter(api)

	rr := do(t, h, http.MethodPost, "/decisions/dec_eu/analyze", validDecision())
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	assert.Equal(t, "accepted", accepted["status"])
	assert.Equal(t, "dec_eu", accepted["decision_id"])
	runID := accepted["run_id"]
	require.NotEmpty(t, runID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	api.wait(ctx)

	rr = do(t, h, http.MethodGet, "/runs/"+runID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var run model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &run))
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, "dec_eu", run.DecisionID)
	assert.Equal(t, "EU expansion", run.Input.Title)

	rr = do(t, h, http.MethodGet, "/runs/"+runID+"/brief", nil, "Accept", "text/markdown")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/markdown")
	assert.Equal(t, "# Decision Brief\n\nEnter the EU market.\n", rr.Body.String())

	rr = do(t, h, http.MethodGet, "/runs/"+runID+"/brief", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var brief model.Brief
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &brief))
	assert.Equal(t, "brief_dec_eu", brief.ID)
}

func TestRouter_AnalyzeFailureMarksRun(t *testing.T) {
	api, st := newTestAPI(t)
	api.analyzer = &fakeAnalyzer{st: st, execErr: assert.AnError}
	h := newRouter(api)

	rr := do(t, h, http.MethodPost, "/decisions/dec_eu/analyze", validDecision())
	require.Equal(t, http.StatusAccepted, rr.Code)
	var accepted map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))

	api.wait(context.Background())

	run, err := st.GetRun(context.Background(), accepted["run_id"])
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)

	rr = do(t, h, http.MethodGet, "/runs/"+run.ID+"/brief", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "has no brief")
}

func TestRouter_AnalyzeRejectsBadInput(t *testing.T) {
	api, st := newTestAPI(t)
	h := newRouter(api)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"malformed json", `{"decisionFrame":`, "invalid request body"},
		{"empty frame", `{"decisionFrame":"  ","decisionType":"market_entry"}`, "decision frame is required"},
		{"unknown type", `{"decisionFrame":"Enter EU?","decisionType":"merger"}`, "unknown decision type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/decisions/dec_eu/analyze", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.want)
		})
	}

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRouter_ListRunsFilters(t *testing.T) {
	api, st := newTestAPI(t)
	h := newRouter(api)
	ctx := context.Background()

	for _, id := range []string{"dec_a", "dec_a", "dec_b"} {
		_, err := st.CreateRun(ctx, model.FullDecision{
			DecisionID:    id,
			DecisionInput: model.DecisionInput{DecisionFrame: "Frame " + id, DecisionType: model.DecisionTypeInvestment},
		})
		require.NoError(t, err)
	}

	rr := do(t, h, http.MethodGet, "/runs?decision=dec_a", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 2)

	rr = do(t, h, http.MethodGet, "/runs?status=complete", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())

	rr = do(t, h, http.MethodGet, "/runs?limit=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &runs))
	assert.Len(t, runs, 1)

	rr = do(t, h, http.MethodGet, "/runs?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_RunNotFound(t *testing.T) {
	api, _ := newTestAPI(t)
	h := newRouter(api)

	for _, path := range []string{"/runs/missing", "/runs/missing/brief", "/runs/missing/phases"} {
		rr := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
		assert.Contains(t, rr.Body.String(), "run not found", path)
	}
}

func TestRouter_ListPhases(t *testing.T) {
	api, st := newTestAPI(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, model.FullDecision{
		DecisionID:    "dec_p",
		DecisionInput: model.DecisionInput{DecisionFrame: "Frame", DecisionType: model.DecisionTypePlatform},
	})
	require.NoError(t, err)
	_, err = st.CreatePhase(ctx, run.ID, pipeline.StagePlan)
	require.NoError(t, err)

	rr := do(t, newRouter(api), http.MethodGet, "/runs/"+run.ID+"/phases", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var phases []model.RunPhase
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &phases))
	require.Len(t, phases, 1)
	assert.Equal(t, pipeline.StagePlan, phases[0].Name)
	assert.Equal(t, model.PhaseStatusRunning, phases[0].Status)
}

func TestRouter_Stats(t *testing.T) {
	api, st := newTestAPI(t)
	_, err := st.CreateRun(context.Background(), model.FullDecision{
		DecisionID:    "dec_s",
		DecisionInput: model.DecisionInput{DecisionFrame: "Frame", DecisionType: model.DecisionTypeOrgModel},
	})
	require.NoError(t, err)

	rr := do(t, newRouter(api), http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap monitoring.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.RunsTotal)
	assert.Equal(t, 1, snap.RunsInFlight)

	api.collector = nil
	rr = do(t, newRouter(api), http.MethodGet, "/stats", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRouter_Metrics(t *testing.T) {
	api, _ := newTestAPI(t)

	rr := do(t, newRouter(api), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "decision_test_total", Help: "test counter"})
	reg.MustRegister(counter)
	counter.Inc()
	api.gatherer = reg

	rr = do(t, newRouter(api), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "decision_test_total 1")
}

func TestRouter_CORS(t *testing.T) {
	api, _ := newTestAPI(t)
	rr := do(t, newRouter(api), http.MethodGet, "/health", nil, "Origin", "https://app.example.com")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}
