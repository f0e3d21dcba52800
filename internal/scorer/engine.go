package scorer

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
)

// RouteLookup resolves a station or area name to a target route.
type RouteLookup interface {
	Lookup(name string) (*model.Route, bool)
}

// Engine scores listings against a route catalog. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	cfg     config.ScoringConfig
	tiers   map[model.Tier]float64
	catalog RouteLookup
}

// New validates cfg and returns an Engine. A bad configuration returns a
// *ConfigurationError and no engine.
func New(cfg config.ScoringConfig, catalog RouteLookup) (*Engine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if catalog == nil {
		return nil, &ConfigurationError{Problems: []string{"route catalog is required"}}
	}
	tiers, err := ParseTierWeights(cfg.TierWeights)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, tiers: tiers, catalog: catalog}, nil
}

// Config returns the scoring configuration the engine was built with.
func (e *Engine) Config() config.ScoringConfig { return e.cfg }

// Score computes the score for one listing. It returns (nil, nil) when the
// listing is on none of the target routes, and an *InvalidListingError when
// the listing itself is malformed. Rank is left unset.
func (e *Engine) Score(l model.Listing) (*model.ScoredListing, error) {
	if err := validateListing(l); err != nil {
		return nil, err
	}

	route, ok := e.catalog.Lookup(l.AreaName)
	if !ok {
		route, ok = e.catalog.Lookup(l.StationName)
	}
	if !ok {
		return nil, nil
	}

	components := map[string]float64{
		model.ComponentPrice: priceFactor(l.Price, e.cfg.PriceBand.Min, e.cfg.PriceBand.Max),
		model.ComponentTier:  e.tiers[route.Tier],
		model.ComponentWalk:  walkFactor(l.WalkMinutes, e.cfg.MaxWalkMinutes),
	}

	total := components[model.ComponentPrice]*e.cfg.PriceWeight +
		components[model.ComponentTier]*e.cfg.TierWeight +
		components[model.ComponentWalk]*e.cfg.WalkWeight
	total = math.Max(0, math.Min(1, total))

	return &model.ScoredListing{
		Listing:    l,
		Route:      route,
		Score:      math.Round(total*10000) / 10000,
		Components: components,
		Reasons:    e.reasons(l, route),
	}, nil
}

// BatchResult is the outcome of scoring one scrape batch.
type BatchResult struct {
	Scored     []model.ScoredListing
	Invalid    []*InvalidListingError
	Mismatched int
}

// ScoreBatch scores every listing in the batch. Invalid listings and route
// mismatches are collected and never abort the batch.
func (e *Engine) ScoreBatch(listings []model.Listing) BatchResult {
	res := BatchResult{Scored: make([]model.ScoredListing, 0, len(listings))}
	for _, l := range listings {
		sl, err := e.Score(l)
		if err != nil {
			var ie *InvalidListingError
			if !errors.As(err, &ie) {
				ie = &InvalidListingError{ListingID: l.ID, Reason: err.Error()}
			}
			res.Invalid = append(res.Invalid, ie)
			continue
		}
		if sl == nil {
			res.Mismatched++
			continue
		}
		res.Scored = append(res.Scored, *sl)
	}
	return res
}

func validateListing(l model.Listing) error {
	switch {
	case strings.TrimSpace(l.ID) == "":
		return &InvalidListingError{ListingID: l.ID, Reason: "missing listing id"}
	case math.IsNaN(l.Price) || math.IsInf(l.Price, 0):
		return &InvalidListingError{ListingID: l.ID, Reason: "price is not a number"}
	case l.Price <= 0:
		return &InvalidListingError{ListingID: l.ID, Reason: fmt.Sprintf("price must be > 0, got %v", l.Price)}
	case l.WalkMinutes < 0:
		return &InvalidListingError{ListingID: l.ID, Reason: fmt.Sprintf("walk minutes must be >= 0, got %d", l.WalkMinutes)}
	}
	return nil
}

// priceFactor is 1 at or below min, 0 at or above max, linear in between.
func priceFactor(price, minPrice, maxPrice float64) float64 {
	if price <= minPrice {
		return 1
	}
	if price >= maxPrice {
		return 0
	}
	return (maxPrice - price) / (maxPrice - minPrice)
}

// walkFactor is 1 at zero minutes and 0 at or beyond maxMinutes.
func walkFactor(minutes, maxMinutes int) float64 {
	if minutes >= maxMinutes {
		return 0
	}
	if minutes <= 0 {
		return 1
	}
	return 1 - float64(minutes)/float64(maxMinutes)
}

func (e *Engine) reasons(l model.Listing, route *model.Route) []string {
	var out []string

	price := message.NewPrinter(language.Japanese).Sprintf("¥%d", int64(math.Round(l.Price)))
	switch {
	case l.Price <= e.cfg.PriceBand.Min:
		out = append(out, fmt.Sprintf("Under budget (%s)", price))
	case l.Price < e.cfg.PriceBand.Max:
		out = append(out, fmt.Sprintf("Within budget (%s)", price))
	default:
		out = append(out, fmt.Sprintf("At or over budget (%s)", price))
	}

	out = append(out, fmt.Sprintf("%s route access (%s)", route.Name, strings.ToLower(route.Tier.String())))

	maxWalk := e.cfg.MaxWalkMinutes
	switch {
	case l.WalkMinutes <= maxWalk/3:
		out = append(out, fmt.Sprintf("Very close to station (%d min)", l.WalkMinutes))
	case l.WalkMinutes <= 2*maxWalk/3:
		out = append(out, fmt.Sprintf("Close to station (%d min)", l.WalkMinutes))
	case l.WalkMinutes <= maxWalk:
		out = append(out, fmt.Sprintf("Acceptable walk (%d min)", l.WalkMinutes))
	default:
		out = append(out, fmt.Sprintf("Long walk to station (%d min)", l.WalkMinutes))
	}

	return out
}
