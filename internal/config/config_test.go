package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "properties.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Server.ResultLimit)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 240, cfg.Schedule.IntervalMins)
	assert.True(t, cfg.Schedule.RunOnStart)

	assert.InDelta(t, 250000, cfg.Scoring.PriceBand.Min, 0.001)
	assert.InDelta(t, 350000, cfg.Scoring.PriceBand.Max, 0.001)
	assert.Equal(t, 15, cfg.Scoring.MaxWalkMinutes)
	assert.InDelta(t, 0.5, cfg.Scoring.PriceWeight, 0.001)
	assert.InDelta(t, 0.3, cfg.Scoring.TierWeight, 0.001)
	assert.InDelta(t, 0.2, cfg.Scoring.WalkWeight, 0.001)
	// viper lowercases map keys
	assert.InDelta(t, 1.0, cfg.Scoring.TierWeights["premium"], 0.001)
	assert.InDelta(t, 0.2, cfg.Scoring.TierWeights["direct"], 0.001)
	assert.Len(t, cfg.Scoring.TierWeights, 4)

	assert.Equal(t, "https://suumo.jp", cfg.Scrape.BaseURL)
	assert.Equal(t, 10, cfg.Scrape.MaxItemsPerTarget)
	assert.Equal(t, 99, cfg.Scrape.DefaultWalkMinutes)
	assert.Equal(t, "div.cassetteitem", cfg.Scrape.Selectors.Item)
	assert.Equal(t, "span.cassetteitem_price--rent", cfg.Scrape.Selectors.Price)

	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.InDelta(t, 0.33, cfg.Fetch.RatePerSec, 0.001)
	assert.Equal(t, 5, cfg.Fetch.FailureThreshold)
	assert.InDelta(t, 0.5, cfg.Monitoring.FailureRateThreshold, 0.001)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/props
log:
  level: debug
  format: console
server:
  port: 9090
scoring:
  price_band:
    min: 100000
    max: 300000
routes:
  - name: Pink
    tier: premium
    areas: [Ebisu, Meguro]
scrape:
  targets:
    - area: Ebisu
      url: https://example.com/ebisu
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/props", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 100000, cfg.Scoring.PriceBand.Min, 0.001)
	assert.InDelta(t, 300000, cfg.Scoring.PriceBand.Max, 0.001)
	require.Len(t, cfg.Routes, 1)
	assert.Equal(t, "Pink", cfg.Routes[0].Name)
	assert.Equal(t, []string{"Ebisu", "Meguro"}, cfg.Routes[0].Areas)
	require.Len(t, cfg.Scrape.Targets, 1)
	assert.Equal(t, "https://example.com/ebisu", cfg.Scrape.Targets[0].URL)
	// Defaults still apply for unset values
	assert.InDelta(t, 0.5, cfg.Scoring.PriceWeight, 0.001)
	assert.Equal(t, 10, cfg.Scrape.MaxItemsPerTarget)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PROPFINDER_STORE_DRIVER", "postgres")
	t.Setenv("PROPFINDER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("PROPFINDER_SERVER_PORT", "3000")
	t.Setenv("PROPFINDER_SCORING_MAX_WALK_MINUTES", "20")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 20, cfg.Scoring.MaxWalkMinutes)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PROPFINDER_SERVER_RESULT_LIMIT=25\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("PROPFINDER_SERVER_RESULT_LIMIT") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Server.ResultLimit)
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config that passes validation.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "properties.db"
	cfg.Server.Port = 8080
	cfg.Schedule.IntervalMins = 240
	cfg.Scrape.Concurrency = 2
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Store.Driver = "mysql" },
			wantErr: "store.driver must be sqlite or postgres",
		},
		{
			name: "postgres without url",
			mutate: func(c *Config) {
				c.Store.Driver = "postgres"
				c.Store.DatabaseURL = ""
			},
			wantErr: "store.database_url is required",
		},
		{
			name: "target without url",
			mutate: func(c *Config) {
				c.Scrape.Targets = []ScrapeTarget{{Area: "Ebisu"}}
			},
			wantErr: "scrape.targets[0] needs area and url",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Scrape.Concurrency = -1 },
			wantErr: "scrape.concurrency",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port out of range",
		},
		{
			name:    "negative interval",
			mutate:  func(c *Config) { c.Schedule.IntervalMins = -5 },
			wantErr: "schedule.interval_mins",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = ""
	cfg.Server.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
	assert.Contains(t, err.Error(), "server.port")
}
