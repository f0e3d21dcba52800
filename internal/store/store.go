// Package store persists the ranked result set and the scrape run log.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/resultset"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Since  time.Time       `json:"since,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the ranking pipeline.
type Store interface {
	// Result set. Both operations are atomic: a save fully replaces the
	// previous set or leaves it untouched.
	LoadResultSet(ctx context.Context) (*resultset.ResultSet, error)
	SaveResultSet(ctx context.Context, rs *resultset.ResultSet) error

	// Runs
	CreateRun(ctx context.Context, trigger string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the Store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

const defaultRunLimit = 100

// listingColumns is the column order shared by both backends.
var listingColumns = []string{
	"listing_id", "title", "rooms", "price", "area_name", "station_name",
	"walk_minutes", "url", "scraped_at", "route_name", "route_tier",
	"score", "rank", "components", "reasons",
}

// listingRow is the flattened form of a ScoredListing.
type listingRow struct {
	ID          string
	Title       string
	Rooms       string
	Price       float64
	AreaName    string
	StationName string
	WalkMinutes int
	URL         string
	ScrapedAt   time.Time
	RouteName   string
	RouteTier   string
	Score       float64
	Rank        int
	Components  []byte
	Reasons     []byte
}

func toRow(s model.ScoredListing) (listingRow, error) {
	components, err := json.Marshal(s.Components)
	if err != nil {
		return listingRow{}, eris.Wrapf(err, "store: marshal components for %s", s.Listing.ID)
	}
	reasons, err := json.Marshal(s.Reasons)
	if err != nil {
		return listingRow{}, eris.Wrapf(err, "store: marshal reasons for %s", s.Listing.ID)
	}
	r := listingRow{
		ID:          s.Listing.ID,
		Title:       s.Listing.Title,
		Rooms:       s.Listing.Rooms,
		Price:       s.Listing.Price,
		AreaName:    s.Listing.AreaName,
		StationName: s.Listing.StationName,
		WalkMinutes: s.Listing.WalkMinutes,
		URL:         s.Listing.URL,
		ScrapedAt:   s.Listing.ScrapedAt.UTC(),
		Score:       s.Score,
		Rank:        s.Rank,
		Components:  components,
		Reasons:     reasons,
	}
	if s.Route != nil {
		r.RouteName = s.Route.Name
		r.RouteTier = s.Route.Tier.String()
	}
	return r, nil
}

func (r listingRow) toScored() (model.ScoredListing, error) {
	s := model.ScoredListing{
		Listing: model.Listing{
			ID:          r.ID,
			Title:       r.Title,
			Rooms:       r.Rooms,
			Price:       r.Price,
			AreaName:    r.AreaName,
			StationName: r.StationName,
			WalkMinutes: r.WalkMinutes,
			URL:         r.URL,
			ScrapedAt:   r.ScrapedAt,
		},
		Score: r.Score,
		Rank:  r.Rank,
	}
	if r.RouteName != "" {
		tier, err := model.ParseTier(r.RouteTier)
		if err != nil {
			return s, eris.Wrapf(err, "store: listing %s", r.ID)
		}
		s.Route = &model.Route{Name: r.RouteName, Tier: tier}
	}
	if len(r.Components) > 0 {
		if err := json.Unmarshal(r.Components, &s.Components); err != nil {
			return s, eris.Wrapf(err, "store: unmarshal components for %s", r.ID)
		}
	}
	if len(r.Reasons) > 0 {
		if err := json.Unmarshal(r.Reasons, &s.Reasons); err != nil {
			return s, eris.Wrapf(err, "store: unmarshal reasons for %s", r.ID)
		}
	}
	return s, nil
}

func marshalResult(result *model.RunResult) ([]byte, error) {
	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	return b, eris.Wrap(err, "store: marshal run result")
}

func unmarshalResult(b []byte) (*model.RunResult, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var r model.RunResult
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal run result")
	}
	return &r, nil
}
