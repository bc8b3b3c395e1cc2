// Package config loads application configuration from config.yaml and
// ACQ_-prefixed environment variables.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Criteria CriteriaConfig `yaml:"criteria" mapstructure:"criteria"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Dedupe   DedupeConfig   `yaml:"dedupe" mapstructure:"dedupe"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CriteriaConfig holds the acquisition filter thresholds. Every rule reads
// its threshold from here; nothing is hardcoded in rule logic.
type CriteriaConfig struct {
	TargetAddress      string   `yaml:"target_address" mapstructure:"target_address"`
	MaxPrice           float64  `yaml:"max_price" mapstructure:"max_price"`
	MaxDistanceMiles   float64  `yaml:"max_distance_miles" mapstructure:"max_distance_miles"`
	MaxMultiple        float64  `yaml:"max_multiple" mapstructure:"max_multiple"`
	RetirementKeywords []string `yaml:"retirement_keywords" mapstructure:"retirement_keywords"`
	AcceptableLabor    []string `yaml:"acceptable_labor" mapstructure:"acceptable_labor"`
	DisabledRules      []string `yaml:"disabled_rules" mapstructure:"disabled_rules"`
}

// GeocodeConfig configures address resolution.
type GeocodeConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	MaxAttempts   int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	NominatimBase string  `yaml:"nominatim_base" mapstructure:"nominatim_base"`
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// SourcesConfig configures the listing data sources.
type SourcesConfig struct {
	MaxConcurrent int             `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	API           APISourceConfig `yaml:"api" mapstructure:"api"`
	Scrapers      []ScraperConfig `yaml:"scrapers" mapstructure:"scrapers"`
}

// APISourceConfig configures the paid listings API source.
type APISourceConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Key        string `yaml:"key" mapstructure:"key"`
	Location   string `yaml:"location" mapstructure:"location"`
	MaxResults int    `yaml:"max_results" mapstructure:"max_results"`
}

// ScraperConfig configures one HTML scraper source. Selectors are CSS
// selectors into the platform's search-result markup.
type ScraperConfig struct {
	Platform  string            `yaml:"platform" mapstructure:"platform"`
	Enabled   bool              `yaml:"enabled" mapstructure:"enabled"`
	SearchURL string            `yaml:"search_url" mapstructure:"search_url"`
	MaxPages  int               `yaml:"max_pages" mapstructure:"max_pages"`
	DelayMS   int               `yaml:"delay_ms" mapstructure:"delay_ms"`
	Selectors map[string]string `yaml:"selectors" mapstructure:"selectors"`
}

// DedupeConfig configures cross-source duplicate clustering.
type DedupeConfig struct {
	TitleSimilarity   float64 `yaml:"title_similarity" mapstructure:"title_similarity"`
	AddressTolerance  float64 `yaml:"address_tolerance_miles" mapstructure:"address_tolerance_miles"`
	PriceTolerancePct float64 `yaml:"price_tolerance_pct" mapstructure:"price_tolerance_pct"`
}

// StoreConfig configures the lifecycle database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// OutputConfig configures the emitted results document.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the results server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ACQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("criteria.target_address", "37 Warren Street, New York, NY 10007")
	v.SetDefault("criteria.max_price", 5_000_000)
	v.SetDefault("criteria.max_distance_miles", 50)
	v.SetDefault("criteria.max_multiple", 5.0)
	v.SetDefault("criteria.retirement_keywords", []string{"retirement", "retiring", "succession", "aging", "health"})
	v.SetDefault("criteria.acceptable_labor", []string{"low", "medium"})
	v.SetDefault("geocode.rate_per_second", 1.0)
	v.SetDefault("geocode.max_attempts", 3)
	v.SetDefault("geocode.nominatim_base", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "acquisition-cli (blake@sellsadvisors.com)")
	v.SetDefault("sources.max_concurrent", 4)
	v.SetDefault("sources.api.base_url", "https://zylalabs.com/api/bizbuysell-listings")
	v.SetDefault("sources.api.location", "New York")
	v.SetDefault("sources.api.max_results", 100)
	v.SetDefault("dedupe.title_similarity", 0.6)
	v.SetDefault("dedupe.address_tolerance_miles", 1.0)
	v.SetDefault("dedupe.price_tolerance_pct", 0.05)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "acquisition.db")
	v.SetDefault("output.path", "business_listings.json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
