// Package scrape turns listing-site search pages into normalized listings.
package scrape

import (
	"context"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/model"
)

// Source produces the listings for one scrape target.
type Source interface {
	Fetch(ctx context.Context, target config.ScrapeTarget) ([]model.Listing, error)
}

// Dedupe keeps one listing per id, preferring the latest ScrapedAt and, on
// ties, the later position in the batch. Order of first appearance is kept.
func Dedupe(listings []model.Listing) []model.Listing {
	pos := make(map[string]int, len(listings))
	out := make([]model.Listing, 0, len(listings))
	for _, l := range listings {
		i, ok := pos[l.ID]
		if !ok {
			pos[l.ID] = len(out)
			out = append(out, l)
			continue
		}
		if !out[i].ScrapedAt.After(l.ScrapedAt) {
			out[i] = l
		}
	}
	return out
}
