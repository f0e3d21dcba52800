package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/resultset"
	"github.com/sells-group/property-finder/internal/store"
)

// MetricsSnapshot holds a point-in-time view of cycle health and the
// published result set.
type MetricsSnapshot struct {
	// Cycle metrics (within lookback window).
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsPartial  int     `json:"runs_partial"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	FailRate     float64 `json:"fail_rate"`

	// Most recent finished run, if any.
	LastRun *model.Run `json:"last_run,omitempty"`

	Properties PropertyStats `json:"properties"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister abstracts the store method the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run log and the board.
type Collector struct {
	runs  RunLister
	board *resultset.Board
	band  config.PriceBand
	now   func() time.Time
}

// NewCollector creates a new metrics collector. board may be nil when only
// run metrics are wanted.
func NewCollector(runs RunLister, board *resultset.Board, band config.PriceBand) *Collector {
	return &Collector{runs: runs, board: board, band: band, now: time.Now}
}

// Collect gathers a snapshot over the given lookback window. The failure
// rate counts partial runs as successes; only failed runs count against it.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		Since: cutoff,
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	for i := range runs {
		r := runs[i]
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusPartial:
			snap.RunsPartial++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
		if r.Status != model.RunStatusRunning && (snap.LastRun == nil || r.StartedAt.After(snap.LastRun.StartedAt)) {
			snap.LastRun = &r
		}
	}

	finished := snap.RunsComplete + snap.RunsPartial + snap.RunsFailed
	if finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}

	if c.board != nil {
		snap.Properties = ComputeStats(c.board.Current(), c.band)
	} else {
		snap.Properties = PropertyStats{Routes: []RouteStats{}}
	}

	return snap, nil
}
