// Package config loads application configuration from an optional yaml file
// and the environment, and initializes the global logger.
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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Extractor  ExtractorConfig  `yaml:"extractor" mapstructure:"extractor"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Similarity SimilarityConfig `yaml:"similarity" mapstructure:"similarity"`
	Cleanup    CleanupConfig    `yaml:"cleanup" mapstructure:"cleanup"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	Model             string `yaml:"model" mapstructure:"model"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// AnthropicConfig holds Anthropic API settings, used when the extractor
// provider is "anthropic".
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ExtractorConfig selects and tunes the structured extraction provider.
type ExtractorConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// PipelineConfig configures batch processing, retries, and staleness.
type PipelineConfig struct {
	BatchSize               int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxConcurrent           int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	MaxRetries              int     `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffBaseMs           int     `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	BackoffCapMs            int     `yaml:"backoff_cap_ms" mapstructure:"backoff_cap_ms"`
	StalenessThresholdDays  int     `yaml:"staleness_threshold_days" mapstructure:"staleness_threshold_days"`
	QualityScoreThreshold   float64 `yaml:"quality_score_threshold" mapstructure:"quality_score_threshold"`
	SkipMaintenance         bool    `yaml:"skip_maintenance" mapstructure:"skip_maintenance"`
	SkipProcessing          bool    `yaml:"skip_processing" mapstructure:"skip_processing"`
}

// SimilarityConfig mirrors similarity.Config for unmarshaling.
type SimilarityConfig struct {
	Weights struct {
		Name     float64 `yaml:"name" mapstructure:"name"`
		Location float64 `yaml:"location" mapstructure:"location"`
		Contact  float64 `yaml:"contact" mapstructure:"contact"`
		Menu     float64 `yaml:"menu" mapstructure:"menu"`
	} `yaml:"weights" mapstructure:"weights"`
	Thresholds struct {
		Name     float64 `yaml:"name" mapstructure:"name"`
		Location float64 `yaml:"location" mapstructure:"location"`
		Contact  float64 `yaml:"contact" mapstructure:"contact"`
		Menu     float64 `yaml:"menu" mapstructure:"menu"`
		Overall  float64 `yaml:"overall" mapstructure:"overall"`
	} `yaml:"thresholds" mapstructure:"thresholds"`
	Confidence struct {
		High   float64 `yaml:"high" mapstructure:"high"`
		Medium float64 `yaml:"medium" mapstructure:"medium"`
	} `yaml:"confidence" mapstructure:"confidence"`
	MaxDistanceKm float64 `yaml:"max_distance_km" mapstructure:"max_distance_km"`
}

// CleanupConfig configures the batch duplicate cleanup.
type CleanupConfig struct {
	DryRun bool `yaml:"dry_run" mapstructure:"dry_run"`
}

// ServerConfig configures the HTTP trigger API.
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
	v.SetEnvPrefix("FOODTRUCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one: AutomaticEnv only surfaces a key into
	// Unmarshal when viper already knows it, so a credential key without a
	// default would be invisible to FOODTRUCK_* env overrides.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "foodtruck.db")
	v.SetDefault("firecrawl.key", "")
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v2")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.requests_per_minute", 10)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("extractor.provider", "gemini")
	v.SetDefault("extractor.cache_ttl_hours", 24)
	v.SetDefault("pipeline.batch_size", 20)
	v.SetDefault("pipeline.max_concurrent", 3)
	v.SetDefault("pipeline.max_retries", 3)
	v.SetDefault("pipeline.backoff_base_ms", 5000)
	v.SetDefault("pipeline.backoff_cap_ms", 300000)
	v.SetDefault("pipeline.staleness_threshold_days", 7)
	v.SetDefault("pipeline.quality_score_threshold", 0.3)
	v.SetDefault("pipeline.skip_maintenance", false)
	v.SetDefault("pipeline.skip_processing", false)
	v.SetDefault("similarity.weights.name", 0.4)
	v.SetDefault("similarity.weights.location", 0.3)
	v.SetDefault("similarity.weights.contact", 0.2)
	v.SetDefault("similarity.weights.menu", 0.1)
	v.SetDefault("similarity.thresholds.name", 0.85)
	v.SetDefault("similarity.thresholds.location", 0.9)
	v.SetDefault("similarity.thresholds.contact", 1.0)
	v.SetDefault("similarity.thresholds.menu", 0.7)
	v.SetDefault("similarity.thresholds.overall", 0.5)
	v.SetDefault("similarity.confidence.high", 0.8)
	v.SetDefault("similarity.confidence.medium", 0.6)
	v.SetDefault("similarity.max_distance_km", 5)
	v.SetDefault("cleanup.dry_run", false)
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

// Validate checks that the selected providers have credentials. Missing
// credentials are a startup failure, not a per-job one.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		return eris.New("config: store.database_url is required for the postgres driver")
	}

	if c.Firecrawl.Key == "" {
		return eris.New("config: firecrawl.key is required")
	}

	switch c.Extractor.Provider {
	case "gemini":
		if c.Gemini.Key == "" {
			return eris.New("config: gemini.key is required when extractor.provider is gemini")
		}
	case "anthropic":
		if c.Anthropic.Key == "" {
			return eris.New("config: anthropic.key is required when extractor.provider is anthropic")
		}
	default:
		return eris.Errorf("config: unknown extractor provider %q", c.Extractor.Provider)
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
