// Package export writes the ranked result set as CSV or XLSX.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/property-finder/internal/model"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat parses a format name case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Header is the column order of every export.
var Header = []string{
	"rank", "score", "title", "price", "rooms", "area", "station",
	"walk_minutes", "route", "tier", "url", "scraped_at",
}

// Write encodes items in format f.
func Write(w io.Writer, f Format, items []model.ScoredListing) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, items)
	case FormatXLSX:
		return WriteXLSX(w, items)
	default:
		return eris.Errorf("export: unknown format %q", f)
	}
}

// WriteCSV writes items as CSV with a header row.
func WriteCSV(w io.Writer, items []model.ScoredListing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, s := range items {
		if err := cw.Write(record(s)); err != nil {
			return eris.Wrapf(err, "export: write csv row %s", s.Listing.ID)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return eris.Wrap(err, "export: flush csv")
	}
	return nil
}

// WriteXLSX writes items to a single "Properties" sheet. Numeric columns are
// written as numbers.
func WriteXLSX(w io.Writer, items []model.ScoredListing) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Properties")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range Header {
		header.AddCell().SetString(h)
	}

	for _, s := range items {
		row := sheet.AddRow()
		row.AddCell().SetInt(s.Rank)
		row.AddCell().SetFloat(s.Score)
		row.AddCell().SetString(s.Listing.Title)
		row.AddCell().SetFloat(s.Listing.Price)
		row.AddCell().SetString(s.Listing.Rooms)
		row.AddCell().SetString(s.Listing.AreaName)
		row.AddCell().SetString(s.Listing.StationName)
		row.AddCell().SetInt(s.Listing.WalkMinutes)
		row.AddCell().SetString(s.RouteName())
		row.AddCell().SetString(tierName(s))
		row.AddCell().SetString(s.Listing.URL)
		row.AddCell().SetString(scrapedAt(s))
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

func record(s model.ScoredListing) []string {
	return []string{
		strconv.Itoa(s.Rank),
		strconv.FormatFloat(s.Score, 'f', 4, 64),
		s.Listing.Title,
		strconv.FormatFloat(s.Listing.Price, 'f', -1, 64),
		s.Listing.Rooms,
		s.Listing.AreaName,
		s.Listing.StationName,
		strconv.Itoa(s.Listing.WalkMinutes),
		s.RouteName(),
		tierName(s),
		s.Listing.URL,
		scrapedAt(s),
	}
}

func tierName(s model.ScoredListing) string {
	if s.Route == nil {
		return ""
	}
	return s.Route.Tier.String()
}

func scrapedAt(s model.ScoredListing) string {
	if s.Listing.ScrapedAt.IsZero() {
		return ""
	}
	return s.Listing.ScrapedAt.UTC().Format(time.RFC3339)
}
