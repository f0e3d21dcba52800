// Package pipeline runs the scrape-score-merge cycle that keeps the ranked
// result set current.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/resultset"
	"github.com/sells-group/property-finder/internal/scorer"
	"github.com/sells-group/property-finder/internal/scrape"
	"github.com/sells-group/property-finder/internal/store"
)

// Trigger names recorded on runs.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerAPI      = "api"
	TriggerImport   = "import"
)

// ErrCycleInProgress is returned when a cycle is requested while another is
// still running.
var ErrCycleInProgress = eris.New("pipeline: cycle already in progress")

// Pipeline is the single writer of the result set. Cycles are serialized;
// readers go through the Board and never wait on a cycle.
type Pipeline struct {
	cfg    config.ScrapeConfig
	source scrape.Source
	engine *scorer.Engine
	store  store.Store
	board  *resultset.Board

	mu sync.Mutex
}

// New creates a Pipeline.
func New(cfg config.ScrapeConfig, src scrape.Source, engine *scorer.Engine, st store.Store, board *resultset.Board) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		source: src,
		engine: engine,
		store:  st,
		board:  board,
	}
}

// Board returns the board the pipeline publishes to.
func (p *Pipeline) Board() *resultset.Board { return p.board }

// Restore loads the persisted result set, rescores it with the current
// configuration and publishes it. Listings that no longer match a route are
// dropped. Returns the number of listings published.
func (p *Pipeline) Restore(ctx context.Context) (int, error) {
	log := zap.L().With(zap.String("component", "pipeline"))

	rs, err := p.store.LoadResultSet(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: load result set")
	}

	rescored, dropped := rs.Rescore(p.engine.Score)
	if dropped > 0 {
		log.Info("pipeline: dropped listings on rescore", zap.Int("dropped", dropped))
	}
	p.board.Publish(rescored)

	log.Info("pipeline: restored result set", zap.Int("listings", rescored.Len()))
	return rescored.Len(), nil
}

// RunCycle scrapes every target, scores the batch, merges it into the
// current set, persists it and publishes it. A target that fails does not
// stop the others; the run is then recorded as partial. If the save fails
// the published set is left untouched.
func (p *Pipeline) RunCycle(ctx context.Context, trigger string) (*model.Run, error) {
	if !p.mu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer p.mu.Unlock()

	run, err := p.store.CreateRun(ctx, trigger)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", run.ID), zap.String("trigger", trigger))
	log.Info("pipeline: cycle starting", zap.Int("targets", len(p.cfg.Targets)))
	start := time.Now()

	listings, targets := p.scrapeTargets(ctx, log)
	result := &model.RunResult{Targets: targets}

	failed := 0
	for _, t := range targets {
		if t.Error != "" {
			failed++
		}
	}

	if len(targets) > 0 && failed == len(targets) {
		result.Error = "all scrape targets failed"
		return p.finish(ctx, log, run, model.RunStatusFailed, result, eris.New("pipeline: all scrape targets failed"))
	}

	if err := p.apply(ctx, log, listings, result); err != nil {
		result.Error = err.Error()
		return p.finish(ctx, log, run, model.RunStatusFailed, result, err)
	}

	status := model.RunStatusComplete
	if failed > 0 {
		status = model.RunStatusPartial
	}
	log.Info("pipeline: cycle complete",
		zap.String("status", string(status)),
		zap.Int("fetched", result.Fetched),
		zap.Int("scored", result.Scored),
		zap.Int("new", result.New),
		zap.Int("total", result.Total),
		zap.Duration("elapsed", time.Since(start)),
	)
	return p.finish(ctx, log, run, status, result, nil)
}

// Ingest merges an externally produced batch, such as a JSON import, through
// the same score-merge-persist path as a scrape cycle.
func (p *Pipeline) Ingest(ctx context.Context, trigger string, listings []model.Listing) (*model.Run, error) {
	if !p.mu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer p.mu.Unlock()

	run, err := p.store.CreateRun(ctx, trigger)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", run.ID), zap.String("trigger", trigger))

	result := &model.RunResult{}
	if err := p.apply(ctx, log, listings, result); err != nil {
		result.Error = err.Error()
		return p.finish(ctx, log, run, model.RunStatusFailed, result, err)
	}
	return p.finish(ctx, log, run, model.RunStatusComplete, result, nil)
}

// scrapeTargets fetches all targets concurrently. Per-target errors are
// recorded in the returned results rather than returned.
func (p *Pipeline) scrapeTargets(ctx context.Context, log *zap.Logger) ([]model.Listing, []model.TargetResult) {
	targets := p.cfg.Targets
	results := make([]model.TargetResult, len(targets))
	batches := make([][]model.Listing, len(targets))

	limit := p.cfg.Concurrency
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, target := range targets {
		g.Go(func() error {
			results[i] = model.TargetResult{Area: target.Area, URL: target.URL}
			found, err := p.source.Fetch(ctx, target)
			if err != nil {
				results[i].Error = err.Error()
				log.Warn("pipeline: scrape target failed", zap.String("area", target.Area), zap.Error(err))
				return nil
			}
			results[i].Found = len(found)
			batches[i] = found
			return nil
		})
	}
	_ = g.Wait()

	var all []model.Listing
	for _, b := range batches {
		all = append(all, b...)
	}
	return all, results
}

// apply scores, merges, saves and publishes a batch, filling in result.
// Nothing is published unless the save succeeds.
func (p *Pipeline) apply(ctx context.Context, log *zap.Logger, listings []model.Listing, result *model.RunResult) error {
	batch := scrape.Dedupe(listings)
	result.Fetched = len(batch)

	scored := p.engine.ScoreBatch(batch)
	for _, inv := range scored.Invalid {
		log.Warn("pipeline: invalid listing excluded", zap.String("listing_id", inv.ListingID), zap.String("reason", inv.Reason))
	}
	result.Scored = len(scored.Scored)
	result.Invalid = len(scored.Invalid)
	result.Mismatched = scored.Mismatched

	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: cancelled before merge")
	}

	merged, stats := p.board.Current().MergeWithStats(scored.Scored)
	result.New = stats.Added
	result.Updated = stats.Updated
	result.Total = merged.Len()

	if err := p.store.SaveResultSet(ctx, merged); err != nil {
		return eris.Wrap(err, "pipeline: save result set")
	}
	p.board.Publish(merged)
	return nil
}

func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, run *model.Run, status model.RunStatus, result *model.RunResult, cycleErr error) (*model.Run, error) {
	// The run record is written even when ctx was cancelled mid-cycle.
	finishCtx := context.WithoutCancel(ctx)
	if err := p.store.FinishRun(finishCtx, run.ID, status, result); err != nil {
		log.Error("pipeline: failed to record run", zap.Error(err))
	}
	now := time.Now().UTC()
	run.Status = status
	run.Result = result
	run.FinishedAt = &now
	if cycleErr != nil {
		log.Error("pipeline: cycle failed", zap.Error(cycleErr))
	}
	return run, cycleErr
}
