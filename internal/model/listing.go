package model

import "time"

// Listing is one normalized property listing as produced by a scraper.
type Listing struct {
	ID          string    `json:"listing_id"`
	Title       string    `json:"title,omitempty"`
	Rooms       string    `json:"rooms,omitempty"`
	Price       float64   `json:"price"`
	AreaName    string    `json:"area_name"`
	StationName string    `json:"station_name,omitempty"`
	WalkMinutes int       `json:"walk_minutes_to_station"`
	URL         string    `json:"raw_url,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Score component keys.
const (
	ComponentPrice = "price"
	ComponentTier  = "tier"
	ComponentWalk  = "walk"
)

// ScoredListing is a listing that matched a route, with its computed score.
// Rank is 1-based and only meaningful inside a ResultSet.
type ScoredListing struct {
	Listing    Listing            `json:"listing"`
	Route      *Route             `json:"route_match,omitempty"`
	Score      float64            `json:"score"`
	Rank       int                `json:"rank"`
	Components map[string]float64 `json:"components,omitempty"`
	Reasons    []string           `json:"reasons,omitempty"`
}

// RouteName returns the matched route name, or "" when unmatched.
func (s *ScoredListing) RouteName() string {
	if s.Route == nil {
		return ""
	}
	return s.Route.Name
}
