package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/monitoring"
	"github.com/sells-group/decision-cli/internal/pipeline"
	"github.com/sells-group/decision-cli/internal/store"
)

var servePort int

// analyzer is the part of the pipeline the API drives.
type analyzer interface {
	Start(ctx context.Context, decisionID string, decision model.FullDecision) (pipeline.RunRef, error)
	Execute(ctx context.Context, ref pipeline.RunRef, decision model.FullDecision) (*model.AnalysisResult, error)
}

// apiServer serves the decision analysis HTTP API.
type apiServer struct {
	store     store.Store
	analyzer  analyzer
	collector *monitoring.Collector
	gatherer  prometheus.Gatherer
	lookback  int

	// bg outlives requests; analyses started by the API run under it.
	bg context.Context
	wg sync.WaitGroup
}

func newRouter(s *apiServer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/decisions/{decisionID}/analyze", s.handleAnalyze)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{runID}", s.handleGetRun)
	r.Get("/runs/{runID}/phases", s.handleListPhases)
	r.Get("/runs/{runID}/brief", s.handleGetBrief)
	r.Get("/stats", s.handleStats)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	decisionID := chi.URLParam(r, "decisionID")

	var decision model.FullDecision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	decision.DecisionID = decisionID
	if err := decision.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := s.analyzer.Start(r.Context(), decisionID, decision)
	if err != nil {
		zap.L().Error("create run failed", zap.String("decision_id", decisionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create run")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		result, err := s.analyzer.Execute(s.bg, ref, decision)
		if err != nil {
			zap.L().Error("analysis failed",
				zap.String("run_id", ref.RunID),
				zap.String("decision_id", ref.DecisionID),
				zap.Error(err),
			)
			return
		}
		zap.L().Info("analysis complete",
			zap.String("run_id", ref.RunID),
			zap.Float64("cost_usd", result.TotalCost),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":      "accepted",
		"run_id":      ref.RunID,
		"decision_id": ref.DecisionID,
	})
}

func (s *apiServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:     model.RunStatus(q.Get("status")),
		DecisionID: q.Get("decision"),
		Limit:      50,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		zap.L().Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *apiServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *apiServer) handleListPhases(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	phases, err := s.store.ListPhases(r.Context(), run.ID)
	if err != nil {
		zap.L().Error("list phases failed", zap.String("run_id", run.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list phases")
		return
	}
	if phases == nil {
		phases = []model.RunPhase{}
	}
	writeJSON(w, http.StatusOK, phases)
}

func (s *apiServer) handleGetBrief(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}
	if run.Result == nil || run.Result.Brief == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s has no brief (status %s)", run.ID, run.Status))
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/markdown") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(run.Result.Brief.Markdown))
		return
	}
	writeJSON(w, http.StatusOK, run.Result.Brief)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		writeError(w, http.StatusServiceUnavailable, "monitoring not configured")
		return
	}
	snap, err := s.collector.Collect(r.Context(), s.lookback)
	if err != nil {
		zap.L().Error("collect stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// lookupRun loads the run named by the route, writing 404/500 itself.
func (s *apiServer) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	runID := chi.URLParam(r, "runID")
	run, err := s.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		zap.L().Error("get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return nil, false
	}
	return run, true
}

// wait blocks until in-flight analyses return or ctx expires.
func (s *apiServer) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		zap.L().Warn("shutdown: analyses still running")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the decision analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, config.ModeServe)
		if err != nil {
			return err
		}
		defer env.Close()

		collector := monitoring.NewCollector(env.Store, time.Duration(cfg.Monitoring.StuckAfterMins)*time.Minute)
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		api := &apiServer{
			store:     env.Store,
			analyzer:  env.Pipeline,
			collector: collector,
			gatherer:  env.Registry,
			lookback:  cfg.Monitoring.LookbackWindowHours,
			bg:        context.WithoutCancel(ctx),
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(api),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		api.wait(drainCtx)
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
