package monitoring

import (
	"sort"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
	"github.com/sells-group/property-finder/internal/resultset"
)

// RouteStats summarizes the listings matched to one route.
type RouteStats struct {
	Route    string  `json:"route"`
	Tier     string  `json:"tier"`
	Count    int     `json:"count"`
	AvgWalk  float64 `json:"avg_walk_minutes"`
	AvgScore float64 `json:"avg_score"`
}

// PropertyStats summarizes a result set.
type PropertyStats struct {
	Total    int          `json:"total"`
	InBudget int          `json:"in_budget"`
	AvgPrice float64      `json:"avg_price"`
	AvgScore float64      `json:"avg_score"`
	MaxScore float64      `json:"max_score"`
	Routes   []RouteStats `json:"routes"`
}

// ComputeStats summarizes rs. A listing is in budget when its price lies
// within band, inclusive. Routes are ordered best tier first, then by name.
func ComputeStats(rs *resultset.ResultSet, band config.PriceBand) PropertyStats {
	stats := PropertyStats{Routes: []RouteStats{}}
	if rs == nil || rs.Len() == 0 {
		return stats
	}

	type acc struct {
		tier  model.Tier
		count int
		walk  int
		score float64
	}
	byRoute := make(map[string]*acc)

	var priceSum, scoreSum float64
	for _, s := range rs.Items() {
		stats.Total++
		priceSum += s.Listing.Price
		scoreSum += s.Score
		if s.Score > stats.MaxScore {
			stats.MaxScore = s.Score
		}
		if s.Listing.Price >= band.Min && s.Listing.Price <= band.Max {
			stats.InBudget++
		}
		if s.Route == nil {
			continue
		}
		a, ok := byRoute[s.Route.Name]
		if !ok {
			a = &acc{tier: s.Route.Tier}
			byRoute[s.Route.Name] = a
		}
		a.count++
		a.walk += s.Listing.WalkMinutes
		a.score += s.Score
	}

	stats.AvgPrice = priceSum / float64(stats.Total)
	stats.AvgScore = scoreSum / float64(stats.Total)

	for name, a := range byRoute {
		stats.Routes = append(stats.Routes, RouteStats{
			Route:    name,
			Tier:     a.tier.String(),
			Count:    a.count,
			AvgWalk:  float64(a.walk) / float64(a.count),
			AvgScore: a.score / float64(a.count),
		})
	}
	sort.Slice(stats.Routes, func(i, j int) bool {
		ti, _ := model.ParseTier(stats.Routes[i].Tier)
		tj, _ := model.ParseTier(stats.Routes[j].Tier)
		if ti != tj {
			return ti > tj
		}
		return stats.Routes[i].Route < stats.Routes[j].Route
	})
	return stats
}
