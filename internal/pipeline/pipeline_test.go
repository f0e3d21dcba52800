package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-finder/internal/catalog"
	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/resultset"
	"github.com/sells-group/property-finder/internal/scorer"
	"github.com/sells-group/property-finder/internal/store"
)

var (
	ebisu    = config.ScrapeTarget{Area: "Ebisu", URL: "https://example.com/ebisu"}
	todoroki = config.ScrapeTarget{Area: "Todoroki", URL: "https://example.com/todoroki"}
	t0       = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newEngine(t *testing.T) *scorer.Engine {
	t.Helper()
	cat, err := catalog.New([]model.Route{
		{Name: "Pink", Tier: model.TierPremium, Areas: []string{"Ebisu"}},
		{Name: "Yellow", Tier: model.TierExcellent, Areas: []string{"Todoroki"}},
	})
	require.NoError(t, err)
	e, err := scorer.New(config.DefaultScoring(), cat)
	require.NoError(t, err)
	return e
}

func newTestPipeline(t *testing.T, src *mockSource, st store.Store, targets ...config.ScrapeTarget) *Pipeline {
	t.Helper()
	cfg := config.ScrapeConfig{Targets: targets, Concurrency: 2}
	return New(cfg, src, newEngine(t), st, resultset.NewBoard(nil))
}

func lst(id, area string, price float64, walk int, at time.Time) model.Listing {
	return model.Listing{ID: id, Price: price, AreaName: area, WalkMinutes: walk, ScrapedAt: at}
}

func TestRunCycle_ScoresMergesAndPersists(t *testing.T) {
	st := newTestStore(t)
	src := &mockSource{}
	src.On("Fetch", mock.Anything, ebisu).Return([]model.Listing{
		lst("a", "Ebisu", 280_000, 3, t0),
		lst("bad", "Ebisu", 0, 3, t0),
		lst("far", "Shinjuku", 200_000, 2, t0),
	}, nil)
	src.On("Fetch", mock.Anything, todoroki).Return([]model.Listing{
		lst("b", "Todoroki", 300_000, 10, t0),
		lst("a", "Ebisu", 290_000, 3, t0.Add(time.Minute)),
	}, nil)

	p := newTestPipeline(t, src, st, ebisu, todoroki)
	run, err := p.RunCycle(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 4, run.Result.Fetched, "duplicate id collapsed before scoring")
	assert.Equal(t, 2, run.Result.Scored)
	assert.Equal(t, 1, run.Result.Invalid)
	assert.Equal(t, 1, run.Result.Mismatched)
	assert.Equal(t, 2, run.Result.New)
	assert.Equal(t, 2, run.Result.Total)
	require.Len(t, run.Result.Targets, 2)
	assert.Equal(t, 3, run.Result.Targets[0].Found)
	assert.Equal(t, 2, run.Result.Targets[1].Found)

	current := p.Board().Current()
	require.Equal(t, 2, current.Len())
	a, ok := current.Get("a")
	require.True(t, ok)
	assert.InDelta(t, 290_000, a.Listing.Price, 0.001, "later scrape wins within a batch")

	saved, err := st.LoadResultSet(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Len())

	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, stored.Status)
	assert.Equal(t, TriggerManual, stored.Trigger)
	src.AssertExpectations(t)
}

func TestRunCycle_SecondCycleUpdates(t *testing.T) {
	st := newTestStore(t)
	src := &mockSource{}
	src.On("Fetch", mock.Anything, ebisu).Return([]model.Listing{lst("a", "Ebisu", 280_000, 3, t0)}, nil).Once()
	src.On("Fetch", mock.Anything, ebisu).Return([]model.Listing{
		lst("a", "Ebisu", 260_000, 3, t0.Add(time.Hour)),
		lst("c", "Ebisu", 300_000, 8, t0.Add(time.Hour)),
	}, nil).Once()

	p := newTestPipeline(t, src, st, ebisu)
	_, err := p.RunCycle(context.Background(), TriggerSchedule)
	require.NoError(t, err)

	run, err := p.RunCycle(context.Background(), TriggerSchedule)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Result.New)
	assert.Equal(t, 1, run.Result.Updated)
	assert.Equal(t, 2, run.Result.Total)

	top := p.Board().Current().Top(1)
	require.Len(t, top, 1)
	assert.Equal(t, "a", top[0].Listing.ID)
	assert.Equal(t, 1, top[0].Rank)
}

func TestRunCycle_PartialFailureStillMerges(t *testing.T) {
	st := newTestStore(t)
	src := &mockSource{}
	src.On("Fetch", mock.Anything, ebisu).Return([]model.Listing{lst("a", "Ebisu", 280_000, 3, t0)}, nil)
	src.On("Fetch", mock.Anything, todoroki).Return(nil, errors.New("scrape: blocked by listing site"))

	p := newTestPipeline(t, src, st, ebisu, todoroki)
	run, err := p.RunCycle(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusPartial, run.Status)
	assert.Contains(t, run.Result.Targets[1].Error, "blocked")
	assert.Equal(t, 1, p.Board().Current().Len())
}

func TestRunCycle_AllTargetsFailed(t *testing.T) {
	st := newTestStore(t)
	src := &mockSource{}
	src.On("Fetch", mock.Anything, ebisu).Return(nil, errors.New("timeout"))

	p := newTestPipeline(t, src, st, ebisu)
	p.Board().Publish(resultset.New([]model.ScoredListing{{Listing: lst("keep", "Ebisu", 1, 1, t0), Score: 0.5}}))

	run, err := p.RunCycle(context.Background(), TriggerManual)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, 1, p.Board().Current().Len(), "displayed set untouched")

	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
}

func TestRunCycle_SaveFailureDoesNotPublish(t *testing.T) {
	st := &failingSaveStore{Store: newTestStore(t), err: errors.New("disk full")}
	src := &mockSource{}
	src.On("Fetch", mock.Anything, ebisu).Return([]model.Listing{lst("a", "Ebisu", 280_000, 3, t0)}, nil)

	p := newTestPipeline(t, src, st, ebisu)
	before := p.Board().Current()

	run, err := p.RunCycle(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline: save result set")
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Same(t, before, p.Board().Current())
}

func TestRunCycle_CancelledBeforeMerge(t *testing.T) {
	st := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	src := &mockSource{}
	src.On("Fetch", mock.Anything, ebisu).Run(func(mock.Arguments) { cancel() }).
		Return([]model.Listing{lst("a", "Ebisu", 280_000, 3, t0)}, nil)

	p := newTestPipeline(t, src, st, ebisu)
	run, err := p.RunCycle(ctx, TriggerManual)
	require.Error(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Zero(t, p.Board().Current().Len())

	saved, err := st.LoadResultSet(context.Background())
	require.NoError(t, err)
	assert.Zero(t, saved.Len())

	stored, err := st.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, stored.Status)
}

func TestRunCycle_Serialized(t *testing.T) {
	st := newTestStore(t)
	started := make(chan struct{})
	release := make(chan struct{})
	src := &mockSource{}
	src.On("Fetch", mock.Anything, ebisu).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return([]model.Listing{}, nil)

	p := newTestPipeline(t, src, st, ebisu)

	done := make(chan error, 1)
	go func() {
		_, err := p.RunCycle(context.Background(), TriggerSchedule)
		done <- err
	}()
	<-started

	_, err := p.RunCycle(context.Background(), TriggerAPI)
	assert.ErrorIs(t, err, ErrCycleInProgress)

	_, err = p.Ingest(context.Background(), TriggerImport, nil)
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(release)
	require.NoError(t, <-done)
}

func TestIngest(t *testing.T) {
	st := newTestStore(t)
	p := newTestPipeline(t, &mockSource{}, st)

	run, err := p.Ingest(context.Background(), TriggerImport, []model.Listing{
		lst("a", "Ebisu", 280_000, 3, t0),
		lst("b", "Todoroki", 300_000, 5, t0),
	})
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, 2, run.Result.Total)
	assert.Equal(t, 2, p.Board().Current().Len())
}

func TestRestore_RescoresWithCurrentConfig(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.SaveResultSet(ctx, resultset.New([]model.ScoredListing{
		{Listing: lst("a", "Ebisu", 280_000, 3, t0), Score: 0.01, Route: &model.Route{Name: "Pink", Tier: model.TierPremium}},
		{Listing: lst("gone", "Shinjuku", 280_000, 3, t0), Score: 0.99, Route: &model.Route{Name: "Old", Tier: model.TierGood}},
	})))

	p := newTestPipeline(t, &mockSource{}, st)
	n, err := p.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, ok := p.Board().Current().Get("a")
	require.True(t, ok)
	assert.Greater(t, a.Score, 0.5)
	assert.Equal(t, 1, a.Rank)
}
