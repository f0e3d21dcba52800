package scrape

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/property-finder/internal/model"
)

// ReadListings decodes a JSON array of listings, as written by an external
// scraper. Missing ids are derived from the URL and missing scrape times are
// set to now.
func ReadListings(r io.Reader, now time.Time) ([]model.Listing, error) {
	var listings []model.Listing
	if err := json.NewDecoder(r).Decode(&listings); err != nil {
		return nil, eris.Wrap(err, "scrape: decode listings")
	}
	for i := range listings {
		l := &listings[i]
		if strings.TrimSpace(l.ID) == "" && strings.TrimSpace(l.URL) != "" {
			l.ID = ListingID(l.URL)
		}
		if l.ScrapedAt.IsZero() {
			l.ScrapedAt = now.UTC()
		}
	}
	return listings, nil
}

// ReadListingsFile reads listings from a JSON file.
func ReadListingsFile(path string, now time.Time) ([]model.Listing, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return ReadListings(f, now)
}
