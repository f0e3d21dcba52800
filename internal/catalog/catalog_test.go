package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/property-finder/internal/model"
)

func TestLookup_CaseAndWidthInsensitive(t *testing.T) {
	c := Default()

	tests := []struct {
		name  string
		input string
		route string
	}{
		{"exact japanese", "恵比寿", "Pink"},
		{"romanized", "Ebisu", "Pink"},
		{"lower case", "ebisu", "Pink"},
		{"full width", "ＥＢＩＳＵ", "Pink"},
		{"padded", "  Todoroki ", "Yellow"},
		{"green", "三軒茶屋", "Green"},
		{"direct", "nakamachidai", "School"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := c.Lookup(tt.input)
			require.True(t, ok)
			assert.Equal(t, tt.route, r.Name)
		})
	}
}

func TestLookup_NoMatch(t *testing.T) {
	c := Default()

	for _, in := range []string{"", "   ", "新宿", "Ebisu Garden"} {
		_, ok := c.Lookup(in)
		assert.False(t, ok, "input %q", in)
	}
}

func TestLookup_HighestTierWins(t *testing.T) {
	c, err := New([]model.Route{
		{Name: "Local", Tier: model.TierDirect, Areas: []string{"Shared"}},
		{Name: "Express", Tier: model.TierPremium, Areas: []string{"shared"}},
		{Name: "Mid", Tier: model.TierGood, Areas: []string{"SHARED"}},
	})
	require.NoError(t, err)

	r, ok := c.Lookup("shared")
	require.True(t, ok)
	assert.Equal(t, "Express", r.Name)
	assert.Equal(t, model.TierPremium, r.Tier)
}

func TestLookup_TieBrokenByDeclarationOrder(t *testing.T) {
	c, err := New([]model.Route{
		{Name: "First", Tier: model.TierGood, Areas: []string{"Hub"}},
		{Name: "Second", Tier: model.TierGood, Areas: []string{"Hub"}},
	})
	require.NoError(t, err)

	r, ok := c.Lookup("hub")
	require.True(t, ok)
	assert.Equal(t, "First", r.Name)
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name   string
		routes []model.Route
		errMsg string
	}{
		{"missing name", []model.Route{{Tier: model.TierGood, Areas: []string{"a"}}}, "no name"},
		{"duplicate route", []model.Route{
			{Name: "Pink", Tier: model.TierGood, Areas: []string{"a"}},
			{Name: "pink", Tier: model.TierGood, Areas: []string{"b"}},
		}, "duplicate route"},
		{"invalid tier", []model.Route{{Name: "X", Areas: []string{"a"}}}, "invalid tier"},
		{"no areas", []model.Route{{Name: "X", Tier: model.TierGood}}, "no areas"},
		{"duplicate area", []model.Route{{Name: "X", Tier: model.TierGood, Areas: []string{"Meguro", "MEGURO"}}}, "twice"},
		{"empty area", []model.Route{{Name: "X", Tier: model.TierGood, Areas: []string{" "}}}, "empty area"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.routes)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRoutes_ReturnsCopy(t *testing.T) {
	c := Default()
	routes := c.Routes()
	require.Len(t, routes, c.Len())

	routes[0].Areas[0] = "mutated"
	routes[0].Name = "mutated"

	r, ok := c.Lookup("田園調布")
	require.True(t, ok)
	assert.Equal(t, "Pink", r.Name)
	assert.Equal(t, "田園調布", c.Routes()[0].Areas[0])
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
routes:
  - name: Blue
    tier: excellent
    areas: [Shibuya, 渋谷]
  - name: Red
    tier: DIRECT
    areas: [Shibuya]
`), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	r, ok := c.Lookup("shibuya")
	require.True(t, ok)
	assert.Equal(t, "Blue", r.Name)
}

func TestLoadFile_BadTier(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("routes:\n  - name: X\n    tier: gold\n    areas: [a]\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog: read")
}
