package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	DecisionID   string          `json:"decision_id,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// ArtifactKind names the stage output a persisted record belongs to.
type ArtifactKind string

const (
	ArtifactEvidence       ArtifactKind = "evidence"
	ArtifactOption         ArtifactKind = "option"
	ArtifactMapping        ArtifactKind = "mapping"
	ArtifactScore          ArtifactKind = "score"
	ArtifactRecommendation ArtifactKind = "recommendation"
	ArtifactBrief          ArtifactKind = "brief"
)

// Artifact is one persisted stage record, keyed by (run, kind, record ID).
type Artifact struct {
	RecordID string          `json:"record_id"`
	Data     json.RawMessage `json:"data"`
}

// ArtifactsOf marshals records into artifacts using id to derive each key.
func ArtifactsOf[T any](records []T, id func(T) string) ([]Artifact, error) {
	out := make([]Artifact, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, eris.Wrap(err, "store: marshal artifact")
		}
		out = append(out, Artifact{RecordID: id(r), Data: data})
	}
	return out, nil
}

// CacheEntry is a row of the TTL cache table. Expired rows are returned as
// stored; callers decide whether to treat them as misses.
type CacheEntry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.After(now)
}

// CacheCounts summarizes the cache table.
type CacheCounts struct {
	Total   int `json:"total"`
	Expired int `json:"expired"`
}

// ArtifactStore persists the records each stage produces.
type ArtifactStore interface {
	// SaveArtifacts writes records once; a repeated (run, kind, record ID)
	// keeps the first write.
	SaveArtifacts(ctx context.Context, runID string, kind ArtifactKind, items []Artifact) error
	ListArtifacts(ctx context.Context, runID string, kind ArtifactKind) ([]Artifact, error)
}

// CacheStore backs the SQL cache.
type CacheStore interface {
	// GetCacheEntry returns nil, nil when the key is absent.
	GetCacheEntry(ctx context.Context, key string) (*CacheEntry, error)
	SetCacheEntry(ctx context.Context, key string, value []byte, expiresAt time.Time) error
	DeleteCacheEntry(ctx context.Context, key string) error
	// DeleteCacheEntries removes keys matching a SQL LIKE pattern.
	DeleteCacheEntries(ctx context.Context, likePattern string) (int, error)
	DeleteExpiredCache(ctx context.Context, now time.Time) (int, error)
	CountCacheEntries(ctx context.Context, now time.Time) (*CacheCounts, error)
}

// Store defines the persistence interface for the decision pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, decision model.FullDecision) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunProgress(ctx context.Context, runID string, progress int, message string) error
	UpdateRunResult(ctx context.Context, runID string, result *model.AnalysisResult) error
	FailRun(ctx context.Context, runID string, message string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	ArtifactStore
	CacheStore

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when a run or phase does not exist.
var ErrNotFound = eris.New("store: not found")

// Open builds the store selected by driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
