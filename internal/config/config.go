package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Feed     FeedConfig     `yaml:"feed" mapstructure:"feed"`
	Xref     XrefConfig     `yaml:"xref" mapstructure:"xref"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Google   GoogleConfig   `yaml:"google" mapstructure:"google"`
	Schedule ScheduleConfig `yaml:"schedule" mapstructure:"schedule"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Credential is a username/password pair for a member-only source.
type Credential struct {
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
}

// ScrapeConfig configures source adapters and the orchestrator.
type ScrapeConfig struct {
	DefaultLocation      string                `yaml:"default_location" mapstructure:"default_location"`
	Concurrency          int                   `yaml:"concurrency" mapstructure:"concurrency"`
	UserAgent            string                `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs          int                   `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	InteractiveTimeout   int                   `yaml:"interactive_timeout_secs" mapstructure:"interactive_timeout_secs"`
	HostIntervalMs       int                   `yaml:"host_interval_ms" mapstructure:"host_interval_ms"`
	MaxRetries           int                   `yaml:"max_retries" mapstructure:"max_retries"`
	AllowUnverifiedLogin bool                  `yaml:"allow_unverified_login" mapstructure:"allow_unverified_login"`
	SitesFile            string                `yaml:"sites_file" mapstructure:"sites_file"`
	PacingMs             map[string]int        `yaml:"pacing_ms" mapstructure:"pacing_ms"`
	Credentials          map[string]Credential `yaml:"credentials" mapstructure:"credentials"`
}

// Pacing returns the configured politeness delay for a category name.
func (c ScrapeConfig) Pacing(category string) time.Duration {
	return time.Duration(c.PacingMs[category]) * time.Millisecond
}

// FeedConfig configures the license registry import.
type FeedConfig struct {
	URL          string `yaml:"url" mapstructure:"url"`
	TempDir      string `yaml:"temp_dir" mapstructure:"temp_dir"`
	BatchSize    int    `yaml:"batch_size" mapstructure:"batch_size"`
	Workers      int    `yaml:"workers" mapstructure:"workers"`
	MaxRedirects int    `yaml:"max_redirects" mapstructure:"max_redirects"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// XrefConfig configures the contact cross-reference pass.
type XrefConfig struct {
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`
	BatchDelayMs   int    `yaml:"batch_delay_ms" mapstructure:"batch_delay_ms"`
	LookupDelayMs  int    `yaml:"lookup_delay_ms" mapstructure:"lookup_delay_ms"`
	Limit          int    `yaml:"limit" mapstructure:"limit"`
	SearchURL      string `yaml:"search_url" mapstructure:"search_url"`
	ResultSelector string `yaml:"result_selector" mapstructure:"result_selector"`
}

// GeocodeConfig configures address geocoding.
type GeocodeConfig struct {
	Enabled      bool    `yaml:"enabled" mapstructure:"enabled"`
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	CacheSize    int     `yaml:"cache_size" mapstructure:"cache_size"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	PlacesAPIKey string `yaml:"places_api_key" mapstructure:"places_api_key"`
}

// ScheduleConfig holds six-field cron specs (seconds first) for the
// recurring jobs. An empty spec leaves that job unscheduled.
type ScheduleConfig struct {
	Feed     string `yaml:"feed" mapstructure:"feed"`
	Xref     string `yaml:"xref" mapstructure:"xref"`
	Scrape   string `yaml:"scrape" mapstructure:"scrape"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// Load reads configuration from config.yaml (optional), the environment
// (CONTRACTOR_ prefix) and defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTRACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("scrape.default_location", "Phoenix, AZ")
	v.SetDefault("scrape.concurrency", 1)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (compatible; contractor-cli/1.0)")
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.interactive_timeout_secs", 60)
	v.SetDefault("scrape.host_interval_ms", 1000)
	v.SetDefault("scrape.max_retries", 2)
	v.SetDefault("scrape.allow_unverified_login", false)
	v.SetDefault("scrape.pacing_ms", map[string]int{
		"manufacturer":   2000,
		"directory":      5000,
		"association":    3000,
		"local":          5000,
		"authenticated":  5000,
		"public_records": 5000,
	})
	v.SetDefault("feed.temp_dir", "/tmp/contractor-feed")
	v.SetDefault("feed.batch_size", 100)
	v.SetDefault("feed.workers", 1)
	v.SetDefault("feed.max_redirects", 1)
	v.SetDefault("feed.timeout_secs", 300)
	v.SetDefault("xref.batch_size", 10)
	v.SetDefault("xref.batch_delay_ms", 2000)
	v.SetDefault("xref.lookup_delay_ms", 500)
	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.rate_limit", 5.0)
	v.SetDefault("geocode.cache_size", 5000)
	v.SetDefault("schedule.feed", "0 0 3 * * *")
	v.SetDefault("schedule.xref", "0 30 4 * * *")
	v.SetDefault("schedule.scrape", "0 0 1 * * SUN")
	v.SetDefault("schedule.timezone", "America/Phoenix")

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

// Validate checks the settings a command needs. mode is one of "store",
// "feed", "xref" or "schedule".
func (c *Config) Validate(mode string) error {
	var missing []string
	switch mode {
	case "store":
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url")
		}
	case "feed":
		if c.Feed.URL == "" {
			missing = append(missing, "feed.url")
		}
		if c.Feed.BatchSize <= 0 {
			missing = append(missing, "feed.batch_size")
		}
	case "xref":
		if c.Xref.BatchSize <= 0 {
			missing = append(missing, "xref.batch_size")
		}
		if c.Google.PlacesAPIKey == "" && c.Xref.SearchURL == "" {
			missing = append(missing, "google.places_api_key or xref.search_url")
		}
	case "schedule":
		if c.Schedule.Feed == "" && c.Schedule.Xref == "" && c.Schedule.Scrape == "" {
			missing = append(missing, "schedule.feed, schedule.xref or schedule.scrape")
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required fields for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger configures the global zap logger.
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
