package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/decision-cli/internal/config"
	"github.com/sells-group/decision-cli/internal/model"
)

// Checker watches run health on an interval. Each stuck run is reported
// once per stage it stalls in, and threshold alerts fire when they start
// breaching rather than on every tick.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	log       *zap.Logger

	// reported maps a stuck run to the stage it was reported stuck in.
	reported map[string]model.RunStatus
	// firing holds the threshold alerts raised on the previous check.
	firing map[AlertType]bool
}

// NewChecker creates a background run health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		log:       zap.L().With(zap.String("component", "monitoring.checker")),
		reported:  make(map[string]model.RunStatus),
		firing:    make(map[AlertType]bool),
	}
}

// Run checks immediately, then on every interval until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	c.log.Info("monitoring: watching decision runs",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
		zap.Int("stuck_after_mins", c.cfg.StuckAfterMins),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			c.log.Info("monitoring: checker stopped")
			return
		}
		c.check(ctx)

		select {
		case <-ctx.Done():
			c.log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// check collects one snapshot and sends the alerts that are new since the
// previous check. It returns the alerts it sent.
func (c *Checker) check(ctx context.Context) []Alert {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		c.log.Error("monitoring: collect run health", zap.Error(err))
		return nil
	}

	fresh := c.newlyStuck(snap.Stuck)

	var pending []Alert
	raised := make(map[AlertType]bool)
	for _, a := range c.alerter.Evaluate(snap) {
		raised[a.Type] = true
		switch {
		case a.Type == AlertStuckRuns:
			if len(fresh) == 0 {
				continue
			}
			a.Details["new_run_ids"] = fresh
		case c.firing[a.Type]:
			continue
		}
		pending = append(pending, a)
	}
	for t := range c.firing {
		if !raised[t] {
			c.log.Info("monitoring: alert cleared", zap.String("type", string(t)))
		}
	}
	c.firing = raised

	if len(pending) == 0 {
		c.log.Debug("monitoring: no new alerts",
			zap.Int("runs_in_flight", snap.RunsInFlight),
			zap.Int("runs_stuck", snap.RunsStuck),
		)
		return nil
	}

	sent := c.alerter.SendAlerts(ctx, pending)
	c.log.Info("monitoring: alerts raised",
		zap.Int("alerts", len(pending)),
		zap.Int("sent", sent),
		zap.Int("runs_in_flight", snap.RunsInFlight),
		zap.Int("runs_stuck", snap.RunsStuck),
	)
	return pending
}

// newlyStuck records the current stuck set and returns the runs not yet
// reported at their current stage. Runs that recovered are forgotten.
func (c *Checker) newlyStuck(stuck []StuckRun) []string {
	current := make(map[string]model.RunStatus, len(stuck))
	var fresh []string
	for _, r := range stuck {
		current[r.RunID] = r.Status
		if stage, ok := c.reported[r.RunID]; ok && stage == r.Status {
			continue
		}
		fresh = append(fresh, r.RunID)
		c.log.Warn("monitoring: run stuck",
			zap.String("run_id", r.RunID),
			zap.String("decision_id", r.DecisionID),
			zap.String("stage", string(r.Status)),
			zap.Duration("idle", r.Idle),
		)
	}
	for id := range c.reported {
		if _, ok := current[id]; !ok {
			c.log.Info("monitoring: run no longer stuck", zap.String("run_id", id))
		}
	}
	c.reported = current
	return fresh
}
