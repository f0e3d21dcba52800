package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/property-finder/internal/catalog"
	"github.com/sells-group/property-finder/internal/fetcher"
	"github.com/sells-group/property-finder/internal/pipeline"
	"github.com/sells-group/property-finder/internal/resultset"
	"github.com/sells-group/property-finder/internal/scorer"
	"github.com/sells-group/property-finder/internal/scrape"
	"github.com/sells-group/property-finder/internal/store"
)

// appEnv holds everything the search/serve/top/import commands share.
type appEnv struct {
	Store    store.Store
	Catalog  *catalog.Catalog
	Engine   *scorer.Engine
	Board    *resultset.Board
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the store, resolves the route catalog, builds the scoring
// engine and pipeline, and restores the last persisted result set rescored
// under the current configuration. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	cat, source, err := catalog.Resolve(cfg)
	if err != nil {
		return nil, err
	}
	zap.L().Info("route catalog loaded", zap.String("source", source), zap.Int("routes", cat.Len()))

	engine, err := scorer.New(cfg.Scoring, cat)
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	board := resultset.NewBoard(nil)
	src := scrape.NewHTMLSource(fetcher.NewHTTPFetcher(cfg.Fetch), cfg.Scrape)
	p := pipeline.New(cfg.Scrape, src, engine, st, board)

	if _, err := p.Restore(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	return &appEnv{
		Store:    st,
		Catalog:  cat,
		Engine:   engine,
		Board:    board,
		Pipeline: p,
	}, nil
}
