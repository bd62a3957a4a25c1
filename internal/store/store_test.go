package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/decision-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func testDecision(id string) model.FullDecision {
	return model.FullDecision{
		DecisionID: id,
		DecisionInput: model.DecisionInput{
			DecisionFrame: "Should we build or buy a data platform?",
			DecisionType:  model.DecisionTypePlatform,
			Constraints:   []model.Constraint{{Category: "budget", Description: "under $2M"}},
		},
		Stakeholders: []model.Stakeholder{{Name: "Dana", Role: "CTO"}},
	}
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testDecision("dec-1"))
		require.NoError(t, err)
		assert.NotEmpty(t, run.ID)
		assert.Equal(t, model.RunStatusQueued, run.Status)
		assert.Equal(t, "dec-1", run.DecisionID)

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.ID, got.ID)
		assert.Equal(t, model.RunStatusQueued, got.Status)
		assert.Equal(t, model.DecisionTypePlatform, got.Input.DecisionType)
		require.Len(t, got.Input.Stakeholders, 1)
		assert.Equal(t, "CTO", got.Input.Stakeholders[0].Role)
		assert.Nil(t, got.Result)
	})

	t.Run("GetRunNotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetRun(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("StatusAndProgress", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testDecision("dec-1"))
		require.NoError(t, err)

		require.NoError(t, s.UpdateRunStatus(ctx, run.ID, model.RunStatusScanning))
		require.NoError(t, s.UpdateRunProgress(ctx, run.ID, 40, "Extracting content..."))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusScanning, got.Status)
		assert.Equal(t, 40, got.Progress)
		assert.Equal(t, "Extracting content...", got.Message)
	})

	t.Run("UpdateMissingRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		assert.True(t, errors.Is(s.UpdateRunStatus(ctx, "nope", model.RunStatusScoring), ErrNotFound))
		assert.True(t, errors.Is(s.UpdateRunProgress(ctx, "nope", 10, "x"), ErrNotFound))
		assert.True(t, errors.Is(s.FailRun(ctx, "nope", "boom"), ErrNotFound))
		assert.True(t, errors.Is(s.UpdateRunResult(ctx, "nope", &model.AnalysisResult{}), ErrNotFound))
	})

	t.Run("UpdateRunResult", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testDecision("dec-1"))
		require.NoError(t, err)

		result := &model.AnalysisResult{
			RunID:      run.ID,
			DecisionID: "dec-1",
			Options:    []model.Option{{ID: "opt_1", Title: "Build"}},
			TotalCost:  0.42,
			TokenUsage: model.TokenUsage{InputTokens: 1000, OutputTokens: 200},
		}
		require.NoError(t, s.UpdateRunResult(ctx, run.ID, result))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusComplete, got.Status)
		assert.Equal(t, 100, got.Progress)
		require.NotNil(t, got.Result)
		assert.InDelta(t, 0.42, got.Result.TotalCost, 1e-9)
		assert.Equal(t, "Build", got.Result.Options[0].Title)
	})

	t.Run("FailRun", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testDecision("dec-1"))
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, run.ID, "Evidence scan failed"))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, model.RunStatusFailed, got.Status)
		assert.Equal(t, "Evidence scan failed", got.Error)
		assert.Equal(t, "Evidence scan failed", got.Message)
	})

	t.Run("ListRunsFilters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		r1, err := s.CreateRun(ctx, testDecision("dec-a"))
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, testDecision("dec-a"))
		require.NoError(t, err)
		_, err = s.CreateRun(ctx, testDecision("dec-b"))
		require.NoError(t, err)
		require.NoError(t, s.FailRun(ctx, r1.ID, "boom"))

		all, err := s.ListRuns(ctx, RunFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		byDecision, err := s.ListRuns(ctx, RunFilter{DecisionID: "dec-a"})
		require.NoError(t, err)
		assert.Len(t, byDecision, 2)

		failed, err := s.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
		require.NoError(t, err)
		require.Len(t, failed, 1)
		assert.Equal(t, r1.ID, failed[0].ID)

		limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)

		offset, err := s.ListRuns(ctx, RunFilter{Limit: 10, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, offset, 1)

		future, err := s.ListRuns(ctx, RunFilter{CreatedAfter: time.Now().Add(time.Hour)})
		require.NoError(t, err)
		assert.Empty(t, future)
	})

	t.Run("Phases", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testDecision("dec-1"))
		require.NoError(t, err)

		phase, err := s.CreatePhase(ctx, run.ID, "plan_queries")
		require.NoError(t, err)
		assert.Equal(t, model.PhaseStatusRunning, phase.Status)

		require.NoError(t, s.CompletePhase(ctx, phase.ID, &model.PhaseResult{
			Name:     "plan_queries",
			Status:   model.PhaseStatusComplete,
			Duration: 1200,
			Metadata: map[string]any{"queries": 12},
		}))

		phases, err := s.ListPhases(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, phases, 1)
		assert.Equal(t, model.PhaseStatusComplete, phases[0].Status)
		require.NotNil(t, phases[0].Result)
		assert.Equal(t, int64(1200), phases[0].Result.Duration)
		assert.EqualValues(t, 12, phases[0].Result.Metadata["queries"])

		err = s.CompletePhase(ctx, "missing", &model.PhaseResult{Status: model.PhaseStatusFailed})
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("ArtifactsWriteOnce", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run, err := s.CreateRun(ctx, testDecision("dec-1"))
		require.NoError(t, err)

		cards := []model.EvidenceCard{
			{ID: "ev_2", Claim: "Second", RelevanceScore: 50},
			{ID: "ev_1", Claim: "First", RelevanceScore: 90},
		}
		items, err := ArtifactsOf(cards, func(c model.EvidenceCard) string { return c.ID })
		require.NoError(t, err)
		require.NoError(t, s.SaveArtifacts(ctx, run.ID, ArtifactEvidence, items))

		// Rewriting the same keys keeps the first write.
		changed, err := ArtifactsOf([]model.EvidenceCard{{ID: "ev_1", Claim: "Rewritten"}},
			func(c model.EvidenceCard) string { return c.ID })
		require.NoError(t, err)
		require.NoError(t, s.SaveArtifacts(ctx, run.ID, ArtifactEvidence, changed))

		got, err := s.ListArtifacts(ctx, run.ID, ArtifactEvidence)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "ev_2", got[0].RecordID)
		assert.Equal(t, "ev_1", got[1].RecordID)

		var card model.EvidenceCard
		require.NoError(t, json.Unmarshal(got[1].Data, &card))
		assert.Equal(t, "First", card.Claim)

		other, err := s.ListArtifacts(ctx, run.ID, ArtifactOption)
		require.NoError(t, err)
		assert.Empty(t, other)

		require.NoError(t, s.SaveArtifacts(ctx, run.ID, ArtifactOption, nil))
	})

	t.Run("CacheEntries", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := time.Now()

		miss, err := s.GetCacheEntry(ctx, "search:abc")
		require.NoError(t, err)
		assert.Nil(t, miss)

		require.NoError(t, s.SetCacheEntry(ctx, "search:abc", []byte("v1"), now.Add(time.Hour)))
		require.NoError(t, s.SetCacheEntry(ctx, "search:abc", []byte("v2"), now.Add(time.Hour)))
		require.NoError(t, s.SetCacheEntry(ctx, "scrape:1", []byte("page"), now.Add(-time.Minute)))
		require.NoError(t, s.SetCacheEntry(ctx, "scrape:2", []byte("page"), now.Add(time.Hour)))

		hit, err := s.GetCacheEntry(ctx, "search:abc")
		require.NoError(t, err)
		require.NotNil(t, hit)
		assert.Equal(t, "v2", string(hit.Value))
		assert.False(t, hit.Expired(now))

		stale, err := s.GetCacheEntry(ctx, "scrape:1")
		require.NoError(t, err)
		require.NotNil(t, stale)
		assert.True(t, stale.Expired(now))

		counts, err := s.CountCacheEntries(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 3, counts.Total)
		assert.Equal(t, 1, counts.Expired)

		n, err := s.DeleteExpiredCache(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.DeleteCacheEntries(ctx, "scrape:%")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		require.NoError(t, s.DeleteCacheEntry(ctx, "search:abc"))
		gone, err := s.GetCacheEntry(ctx, "search:abc")
		require.NoError(t, err)
		assert.Nil(t, gone)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "x", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestOpenSQLite(t *testing.T) {
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "open.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	require.NoError(t, s.Migrate(context.Background()))
}
