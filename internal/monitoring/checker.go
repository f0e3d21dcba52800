package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/property-finder/internal/config"
)

const defaultCheckInterval = 15 * time.Minute

// Checker evaluates cycle health between scrape cycles and forwards new
// alerts to the webhook.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	// notified maps an alert type to the run it was last delivered for.
	// Checks run far more often than cycles, so an alert is only repeated
	// once another cycle has finished.
	notified map[AlertType]string
}

// NewChecker creates a checker. It holds per-run delivery state and must
// not be shared between goroutines.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		notified:  make(map[AlertType]string),
	}
}

// Run checks on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("monitoring: cycle checker starting",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("monitoring: cycle checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

// check collects a snapshot and delivers alerts not yet sent for the most
// recent finished cycle. It returns the number delivered.
func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: collect cycle metrics", zap.Error(err))
		return 0
	}
	if snap.LastRun == nil {
		log.Debug("monitoring: no finished cycle in window, skipping",
			zap.Int("running", snap.RunsRunning),
		)
		return 0
	}
	runID := snap.LastRun.ID

	sent := 0
	for _, alert := range c.alerter.Evaluate(snap) {
		if c.notified[alert.Type] == runID {
			log.Debug("monitoring: alert already sent for run",
				zap.String("type", string(alert.Type)),
				zap.String("run_id", runID),
			)
			continue
		}
		if c.alerter.SendAlerts(ctx, []Alert{alert}) == 0 {
			continue
		}
		c.notified[alert.Type] = runID
		sent++
		log.Warn("monitoring: cycle alert raised",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
			zap.String("run_id", runID),
			zap.String("run_status", string(snap.LastRun.Status)),
		)
	}
	if sent == 0 {
		log.Debug("monitoring: no new alerts", zap.String("run_id", runID))
	}
	return sent
}
