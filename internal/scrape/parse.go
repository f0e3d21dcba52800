package scrape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/width"
)

var (
	numberRe  = regexp.MustCompile(`\d+(?:\.\d+)?`)
	walkRe    = regexp.MustCompile(`(\d+)\s*分`)
	stationRe = regexp.MustCompile(`/\s*([^/\s]+?)駅`)
	bareRe    = regexp.MustCompile(`^([^/\s]+?)駅`)
)

// fold maps full-width digits and punctuation to ASCII and drops commas and
// surrounding space, so "２８.５万円" and "28.5万円" parse the same.
func fold(s string) string {
	s = width.Fold.String(s)
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

// ParsePrice converts a rent string to yen. "28万円" is 280000, "28.5万円" is
// 285000 and "120000円" is 120000. Text without a number returns 0.
func ParsePrice(text string) float64 {
	s := fold(text)
	num := numberRe.FindString(s)
	if num == "" {
		return 0
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if strings.Contains(s, "万") {
		v *= 10_000
	}
	return v
}

// ParseWalk extracts walking minutes from text like "徒歩5分" or
// "東急東横線/祐天寺駅 歩11分". When no minutes are present it returns
// fallback and false.
func ParseWalk(text string, fallback int) (int, bool) {
	m := walkRe.FindStringSubmatch(fold(text))
	if m == nil {
		return fallback, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return fallback, false
	}
	return n, true
}

// ParseStation extracts the station name from access text such as
// "東急東横線/祐天寺駅 歩11分" (祐天寺). Returns "" when no station is named.
func ParseStation(text string) string {
	s := fold(text)
	if m := stationRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	if m := bareRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

// ListingID derives a stable listing id. The detail URL identifies a listing
// across scrapes; without one, the visible fields stand in.
func ListingID(url string, fallback ...string) string {
	key := strings.TrimSpace(url)
	if key == "" {
		key = strings.Join(fallback, "|")
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}
