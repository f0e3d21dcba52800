// Package resultset holds the ranked, deduplicated collection of scored
// listings that the dashboard reads and each scrape cycle merges into.
package resultset

import (
	"sort"

	"github.com/sells-group/property-finder/internal/model"
)

// ResultSet is an immutable ranked sequence of scored listings, unique by
// listing id. Order is score descending, then price ascending, then id
// ascending. Merge and Rescore return new sets and never touch the receiver.
type ResultSet struct {
	items []model.ScoredListing
	index map[string]int
}

// Empty returns a ResultSet with no entries.
func Empty() *ResultSet {
	return &ResultSet{index: map[string]int{}}
}

// New builds a ResultSet from arbitrary scored listings, applying the same
// dedup rule as Merge.
func New(scored []model.ScoredListing) *ResultSet {
	return Empty().Merge(scored)
}

// MergeStats counts what a merge did with each incoming entry.
type MergeStats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	// Stale entries lost to an existing entry with a strictly later scraped_at.
	Stale int `json:"stale"`
}

// Merge unions batch into the set by listing id. An incoming entry replaces
// the existing one unless the existing entry was scraped strictly later.
// An empty batch returns the receiver itself.
func (r *ResultSet) Merge(batch []model.ScoredListing) *ResultSet {
	out, _ := r.MergeWithStats(batch)
	return out
}

// MergeWithStats is Merge, also reporting how many entries were added,
// updated or discarded as stale.
func (r *ResultSet) MergeWithStats(batch []model.ScoredListing) (*ResultSet, MergeStats) {
	var stats MergeStats
	if len(batch) == 0 {
		return r, stats
	}

	byID := make(map[string]model.ScoredListing, len(r.items)+len(batch))
	for _, s := range r.items {
		byID[s.Listing.ID] = s
	}

	for _, s := range batch {
		id := s.Listing.ID
		cur, ok := byID[id]
		if !ok {
			byID[id] = cloneScored(s)
			stats.Added++
			continue
		}
		if cur.Listing.ScrapedAt.After(s.Listing.ScrapedAt) {
			stats.Stale++
			continue
		}
		byID[id] = cloneScored(s)
		if _, existed := r.index[id]; existed {
			stats.Updated++
		}
	}

	items := make([]model.ScoredListing, 0, len(byID))
	for _, s := range byID {
		items = append(items, s)
	}
	return build(items), stats
}

// Rescore recomputes every entry with fn, typically after the scoring
// configuration or route catalog changed. Entries for which fn returns nil or
// an error are dropped; the number dropped is returned.
func (r *ResultSet) Rescore(fn func(model.Listing) (*model.ScoredListing, error)) (*ResultSet, int) {
	items := make([]model.ScoredListing, 0, len(r.items))
	dropped := 0
	for _, s := range r.items {
		sl, err := fn(s.Listing)
		if err != nil || sl == nil {
			dropped++
			continue
		}
		items = append(items, *sl)
	}
	return build(items), dropped
}

// Len returns the number of entries.
func (r *ResultSet) Len() int { return len(r.items) }

// Items returns a copy of all entries in rank order.
func (r *ResultSet) Items() []model.ScoredListing {
	return r.Top(len(r.items))
}

// Top returns a copy of the first n entries in rank order. n <= 0 or larger
// than the set returns everything.
func (r *ResultSet) Top(n int) []model.ScoredListing {
	if n <= 0 || n > len(r.items) {
		n = len(r.items)
	}
	out := make([]model.ScoredListing, n)
	for i := 0; i < n; i++ {
		out[i] = cloneScored(r.items[i])
	}
	return out
}

// Get returns the entry for a listing id.
func (r *ResultSet) Get(id string) (model.ScoredListing, bool) {
	i, ok := r.index[id]
	if !ok {
		return model.ScoredListing{}, false
	}
	return cloneScored(r.items[i]), true
}

func build(items []model.ScoredListing) *ResultSet {
	sort.Slice(items, func(i, j int) bool { return less(items[i], items[j]) })

	index := make(map[string]int, len(items))
	for i := range items {
		items[i].Rank = i + 1
		index[items[i].Listing.ID] = i
	}
	return &ResultSet{items: items, index: index}
}

func less(a, b model.ScoredListing) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Listing.Price != b.Listing.Price {
		return a.Listing.Price < b.Listing.Price
	}
	return a.Listing.ID < b.Listing.ID
}

// cloneScored copies the mutable parts so callers cannot alias set internals.
// Route is shared: catalog routes are immutable.
func cloneScored(s model.ScoredListing) model.ScoredListing {
	if s.Components != nil {
		c := make(map[string]float64, len(s.Components))
		for k, v := range s.Components {
			c[k] = v
		}
		s.Components = c
	}
	if s.Reasons != nil {
		s.Reasons = append([]string(nil), s.Reasons...)
	}
	return s
}
