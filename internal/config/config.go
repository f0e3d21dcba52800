package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Fetch      FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Routes     []RouteConfig    `yaml:"routes" mapstructure:"routes"`
	RoutesFile string           `yaml:"routes_file" mapstructure:"routes_file"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// ScrapeTarget is one search results page to scrape. Listings found on it are
// attributed to Area unless the page names a station of its own.
type ScrapeTarget struct {
	Area string `yaml:"area" mapstructure:"area"`
	URL  string `yaml:"url" mapstructure:"url"`
}

// SelectorConfig holds the CSS selectors used to pull listing fields out of a
// results page. Item is evaluated against the document, the rest against each item.
type SelectorConfig struct {
	Item    string `yaml:"item" mapstructure:"item"`
	Title   string `yaml:"title" mapstructure:"title"`
	Price   string `yaml:"price" mapstructure:"price"`
	Rooms   string `yaml:"rooms" mapstructure:"rooms"`
	Station string `yaml:"station" mapstructure:"station"`
	Walk    string `yaml:"walk" mapstructure:"walk"`
	Link    string `yaml:"link" mapstructure:"link"`
}

// ScrapeConfig configures the listing scraper.
type ScrapeConfig struct {
	Targets            []ScrapeTarget `yaml:"targets" mapstructure:"targets"`
	Selectors          SelectorConfig `yaml:"selectors" mapstructure:"selectors"`
	BaseURL            string         `yaml:"base_url" mapstructure:"base_url"`
	MaxItemsPerTarget  int            `yaml:"max_items_per_target" mapstructure:"max_items_per_target"`
	DefaultWalkMinutes int            `yaml:"default_walk_minutes" mapstructure:"default_walk_minutes"`
	Concurrency        int            `yaml:"concurrency" mapstructure:"concurrency"`
}

// FetchConfig configures outbound HTTP: throttling, retries and the circuit breaker.
type FetchConfig struct {
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst            int     `yaml:"burst" mapstructure:"burst"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// PriceBand is the reference price range for the price factor.
type PriceBand struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// ScoringConfig configures the listing score. The three factor weights must
// sum to 1.
type ScoringConfig struct {
	PriceBand      PriceBand          `yaml:"price_band" mapstructure:"price_band"`
	TierWeights    map[string]float64 `yaml:"tier_weights" mapstructure:"tier_weights"`
	MaxWalkMinutes int                `yaml:"max_walk_minutes" mapstructure:"max_walk_minutes"`
	PriceWeight    float64            `yaml:"price_weight" mapstructure:"price_weight"`
	TierWeight     float64            `yaml:"tier_weight" mapstructure:"tier_weight"`
	WalkWeight     float64            `yaml:"walk_weight" mapstructure:"walk_weight"`
}

// RouteConfig declares one commute route inline in the config file.
type RouteConfig struct {
	Name  string   `yaml:"name" mapstructure:"name"`
	Tier  string   `yaml:"tier" mapstructure:"tier"`
	Areas []string `yaml:"areas" mapstructure:"areas"`
}

// ScheduleConfig configures the periodic scrape cycle.
type ScheduleConfig struct {
	IntervalMins int  `yaml:"interval_mins" mapstructure:"interval_mins"`
	RunOnStart   bool `yaml:"run_on_start" mapstructure:"run_on_start"`
}

// ServerConfig configures the dashboard feed server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ResultLimit    int      `yaml:"result_limit" mapstructure:"result_limit"`
}

// MonitoringConfig configures cycle health alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment, in that
// order of increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "properties.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.result_limit", 50)
	v.SetDefault("schedule.interval_mins", 240)
	v.SetDefault("schedule.run_on_start", true)

	sc := DefaultScoring()
	v.SetDefault("scoring.price_band.min", sc.PriceBand.Min)
	v.SetDefault("scoring.price_band.max", sc.PriceBand.Max)
	v.SetDefault("scoring.tier_weights", sc.TierWeights)
	v.SetDefault("scoring.max_walk_minutes", sc.MaxWalkMinutes)
	v.SetDefault("scoring.price_weight", sc.PriceWeight)
	v.SetDefault("scoring.tier_weight", sc.TierWeight)
	v.SetDefault("scoring.walk_weight", sc.WalkWeight)

	v.SetDefault("scrape.base_url", "https://suumo.jp")
	v.SetDefault("scrape.max_items_per_target", 10)
	v.SetDefault("scrape.default_walk_minutes", 99)
	v.SetDefault("scrape.concurrency", 2)
	v.SetDefault("scrape.selectors.item", "div.cassetteitem")
	v.SetDefault("scrape.selectors.title", "div.cassetteitem_content-title")
	v.SetDefault("scrape.selectors.price", "span.cassetteitem_price--rent")
	v.SetDefault("scrape.selectors.rooms", "span.cassetteitem_madori")
	v.SetDefault("scrape.selectors.station", ".cassetteitem_detail-text")
	v.SetDefault("scrape.selectors.walk", ".cassetteitem_detail-text")
	v.SetDefault("scrape.selectors.link", "a")

	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.rate_per_sec", 0.33)
	v.SetDefault("fetch.burst", 1)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.initial_backoff_ms", 1000)
	v.SetDefault("fetch.max_backoff_ms", 30000)
	v.SetDefault("fetch.failure_threshold", 5)
	v.SetDefault("fetch.reset_timeout_secs", 300)

	v.SetDefault("monitoring.check_interval_secs", 900)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
}

// DefaultScoring returns the stock scoring block. Tier keys are lower case,
// the same form viper yields for keys read from a file or the environment.
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		PriceBand: PriceBand{Min: 250_000, Max: 350_000},
		TierWeights: map[string]float64{
			"premium":   1.0,
			"excellent": 0.7,
			"good":      0.4,
			"direct":    0.2,
		},
		MaxWalkMinutes: 15,
		PriceWeight:    0.5,
		TierWeight:     0.3,
		WalkWeight:     0.2,
	}
}

// Validate checks the non-scoring sections. Scoring weights and bands are
// validated by the scorer package, which owns their semantics.
func (c *Config) Validate() error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required for postgres")
	}
	for i, t := range c.Scrape.Targets {
		if strings.TrimSpace(t.Area) == "" || strings.TrimSpace(t.URL) == "" {
			errs = append(errs, fmt.Sprintf("scrape.targets[%d] needs area and url", i))
		}
	}
	if c.Scrape.Concurrency < 0 {
		errs = append(errs, "scrape.concurrency must be >= 0")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port out of range")
	}
	if c.Schedule.IntervalMins < 0 {
		errs = append(errs, "schedule.interval_mins must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
