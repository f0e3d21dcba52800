//go:build !integration

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/property-finder/internal/model"
)

func TestFormatListings(t *testing.T) {
	items := []model.ScoredListing{
		{
			Listing: model.Listing{ID: "a", Title: "パークハウス恵比寿ガーデンプレイスタワー・レジデンス最上階角部屋", Price: 280_000, AreaName: "Ebisu", WalkMinutes: 3},
			Route:   &model.Route{Name: "Pink", Tier: model.TierPremium},
			Score:   0.81,
			Rank:    1,
		},
	}

	var buf bytes.Buffer
	formatListings(&buf, items)

	out := buf.String()
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "0.8100")
	assert.Contains(t, out, "¥280,000")
	assert.Contains(t, out, "Pink")
	assert.Contains(t, out, "3 min")
	assert.Contains(t, out, "...")
}

func TestFormatRunSummary(t *testing.T) {
	run := &model.Run{
		ID:     "run-1",
		Status: model.RunStatusPartial,
		Result: &model.RunResult{
			Fetched: 10, Scored: 7, Invalid: 1, Mismatched: 2, New: 5, Updated: 2, Total: 30,
			Targets: []model.TargetResult{
				{Area: "Ebisu", Found: 10},
				{Area: "Meguro", Error: "scrape: blocked by listing site"},
			},
		},
	}

	var buf bytes.Buffer
	formatRunSummary(&buf, run)

	out := buf.String()
	assert.Contains(t, out, "run-1 (partial)")
	assert.Contains(t, out, "10 found")
	assert.Contains(t, out, "FAILED scrape: blocked")
	assert.Contains(t, out, "invalid 1, off-route 2")
	assert.Contains(t, out, "5 new, 2 updated, 30 total")
}

func TestFormatRoutes(t *testing.T) {
	var buf bytes.Buffer
	formatRoutes(&buf, []model.Route{{Name: "Pink", Tier: model.TierPremium, Areas: []string{"Meguro", "Ebisu"}}})
	assert.Contains(t, buf.String(), "PREMIUM")
	assert.Contains(t, buf.String(), "Meguro, Ebisu")
}
