package scrape

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/property-finder/internal/config"
	"github.com/sells-group/property-finder/internal/fetcher"
	"github.com/sells-group/property-finder/internal/model"
)

// HTMLSource scrapes a listing-site results page with CSS selectors.
type HTMLSource struct {
	fetch fetcher.Fetcher
	cfg   config.ScrapeConfig
	now   func() time.Time
}

// defaultWalkMinutes stands in for a missing walk time. It is far enough out
// that such listings get no walk credit.
const defaultWalkMinutes = 99

// NewHTMLSource creates an HTMLSource that downloads pages with f.
func NewHTMLSource(f fetcher.Fetcher, cfg config.ScrapeConfig) *HTMLSource {
	if cfg.DefaultWalkMinutes <= 0 {
		cfg.DefaultWalkMinutes = defaultWalkMinutes
	}
	return &HTMLSource{fetch: f, cfg: cfg, now: time.Now}
}

// Fetch downloads target.URL and parses up to MaxItemsPerTarget listings.
// Items without a price are skipped. A page with no items that looks like an
// anti-bot interstitial returns ErrBlocked.
func (s *HTMLSource) Fetch(ctx context.Context, target config.ScrapeTarget) ([]model.Listing, error) {
	log := zap.L().With(zap.String("area", target.Area), zap.String("url", target.URL))

	page, err := s.fetch.Fetch(ctx, target.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: fetch %s", target.Area)
	}

	listings, err := s.Parse(page.Body, target)
	if err != nil {
		return nil, err
	}

	if len(listings) == 0 {
		if blocked, kind := DetectBlock(page.Body); blocked {
			log.Warn("scrape: results page blocked", zap.String("block_type", string(kind)))
			return nil, eris.Wrapf(ErrBlocked, "scrape: %s (%s)", target.Area, kind)
		}
	}

	log.Info("scrape: parsed results page", zap.Int("listings", len(listings)))
	return listings, nil
}

// Parse extracts listings from a results page body.
func (s *HTMLSource) Parse(body []byte, target config.ScrapeTarget) ([]model.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse html")
	}

	sel := s.cfg.Selectors
	scrapedAt := s.now().UTC()
	limit := s.cfg.MaxItemsPerTarget

	var out []model.Listing
	doc.Find(sel.Item).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}

		priceSel := item.Find(sel.Price).First()
		if priceSel.Length() == 0 {
			return true
		}

		title := text(item, sel.Title)
		access := text(item, sel.Station)
		walkText := access
		if sel.Walk != sel.Station {
			walkText = text(item, sel.Walk)
		}
		walk, _ := ParseWalk(walkText, s.cfg.DefaultWalkMinutes)
		link := s.resolve(target.URL, attr(item, sel.Link, "href"))
		price := ParsePrice(priceSel.Text())

		out = append(out, model.Listing{
			ID:          ListingID(link, target.Area, title, priceSel.Text()),
			Title:       title,
			Rooms:       text(item, sel.Rooms),
			Price:       price,
			AreaName:    target.Area,
			StationName: ParseStation(access),
			WalkMinutes: walk,
			URL:         link,
			ScrapedAt:   scrapedAt,
		})
		return true
	})

	return out, nil
}

// resolve makes href absolute against BaseURL, falling back to the page URL.
func (s *HTMLSource) resolve(pageURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	base := s.cfg.BaseURL
	if base == "" {
		base = pageURL
	}
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(item.Find(selector).First().Text()), " ")
}

func attr(item *goquery.Selection, selector, name string) string {
	if selector == "" {
		return ""
	}
	v, _ := item.Find(selector).First().Attr(name)
	return v
}
