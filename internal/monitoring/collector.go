// Package monitoring summarizes run health from the store and raises
// webhook alerts when thresholds are crossed.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/decision-cli/internal/model"
	"github.com/sells-group/decision-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Runs created within the lookback window.
	RunsTotal       int     `json:"runs_total"`
	RunsComplete    int     `json:"runs_complete"`
	RunsFailed      int     `json:"runs_failed"`
	RunsInFlight    int     `json:"runs_in_flight"`
	RunsStuck       int     `json:"runs_stuck"`
	FailRate        float64 `json:"fail_rate"`
	CostUSD         float64 `json:"cost_usd"`
	AvgTokens       int     `json:"avg_tokens"`
	AvgDurationSecs float64 `json:"avg_duration_secs"`

	// Status counts in-flight runs by their current stage.
	Status map[model.RunStatus]int `json:"status"`

	// Stuck lists the in-flight runs idle past the stuck threshold, oldest
	// first.
	Stuck []StuckRun `json:"stuck,omitempty"`

	CacheEntries int `json:"cache_entries"`
	CacheExpired int `json:"cache_expired"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// StuckRun is an in-flight run that has stopped reporting progress.
type StuckRun struct {
	RunID      string          `json:"run_id"`
	DecisionID string          `json:"decision_id"`
	Status     model.RunStatus `json:"status"`
	Idle       time.Duration   `json:"idle"`
}

// Source is the slice of the store the collector reads.
type Source interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	CountCacheEntries(ctx context.Context, now time.Time) (*store.CacheCounts, error)
}

// Collector gathers snapshots from the store.
type Collector struct {
	store      Source
	stuckAfter time.Duration
	now        func() time.Time
}

// NewCollector creates a collector. Runs that have not been updated for
// stuckAfter are counted as stuck; zero uses one hour.
func NewCollector(st Source, stuckAfter time.Duration) *Collector {
	if stuckAfter <= 0 {
		stuckAfter = time.Hour
	}
	return &Collector{store: st, stuckAfter: stuckAfter, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	if lookbackHours <= 0 {
		lookbackHours = 24
	}
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		Status:        make(map[model.RunStatus]int),
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	var totalTokens int
	var totalDuration time.Duration

	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			totalDuration += r.UpdatedAt.Sub(r.CreatedAt)
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsInFlight++
			snap.Status[r.Status]++
			if idle := now.Sub(r.UpdatedAt); idle > c.stuckAfter {
				snap.Stuck = append(snap.Stuck, StuckRun{
					RunID:      r.ID,
					DecisionID: r.DecisionID,
					Status:     r.Status,
					Idle:       idle,
				})
			}
		}
		if r.Result != nil {
			snap.CostUSD += r.Result.TotalCost
			totalTokens += r.Result.TokenUsage.InputTokens + r.Result.TokenUsage.OutputTokens
		}
	}

	snap.RunsStuck = len(snap.Stuck)
	sort.Slice(snap.Stuck, func(i, j int) bool { return snap.Stuck[i].Idle > snap.Stuck[j].Idle })

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.RunsComplete > 0 {
		snap.AvgTokens = totalTokens / snap.RunsComplete
		snap.AvgDurationSecs = totalDuration.Seconds() / float64(snap.RunsComplete)
	}

	counts, err := c.store.CountCacheEntries(ctx, now)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count cache entries")
	}
	snap.CacheEntries = counts.Total
	snap.CacheExpired = counts.Expired

	return snap, nil
}
