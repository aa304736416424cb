// Package config loads the flat application configuration from file and
// environment, and initializes the global logger.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. Read once at process
// start; no hot reload.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Judicial  JudicialConfig  `yaml:"judicial" mapstructure:"judicial"`
	WebSearch WebSearchConfig `yaml:"websearch" mapstructure:"websearch"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Messenger MessengerConfig `yaml:"messenger" mapstructure:"messenger"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// JudicialConfig holds judicial-records provider settings.
type JudicialConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WebSearchConfig holds web-search provider settings.
type WebSearchConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Limit       int    `yaml:"limit" mapstructure:"limit"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// FetchConfig bounds the page-fetch stage.
type FetchConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	AllowedDomains []string `yaml:"allowed_domains" mapstructure:"allowed_domains"`
	MaxBytes       int64    `yaml:"max_bytes" mapstructure:"max_bytes"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Concurrency    int      `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSecond  float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	ExtractModel    string `yaml:"extract_model" mapstructure:"extract_model"`
	SynthesizeModel string `yaml:"synthesize_model" mapstructure:"synthesize_model"`
}

// MessengerConfig holds report-delivery webhook settings.
type MessengerConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
	Token      string `yaml:"token" mapstructure:"token"`
}

// PipelineConfig configures orchestrator behavior.
type PipelineConfig struct {
	FreshnessDays      int `yaml:"freshness_days" mapstructure:"freshness_days"`
	AdaptiveThreshold  int `yaml:"adaptive_threshold" mapstructure:"adaptive_threshold"`
	IndexLagDays       int `yaml:"index_lag_days" mapstructure:"index_lag_days"`
	MinQueryLength     int `yaml:"min_query_length" mapstructure:"min_query_length"`
	MaxSourcesPerQuery int `yaml:"max_sources_per_query" mapstructure:"max_sources_per_query"`
}

// Freshness returns the report cache window as a duration.
func (p PipelineConfig) Freshness() time.Duration {
	days := p.FreshnessDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
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
	v.SetEnvPrefix("DOSSIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "dossier.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("judicial.enabled", true)
	v.SetDefault("judicial.base_url", "https://api.datajud.cnj.jus.br")
	v.SetDefault("judicial.timeout_secs", 30)
	v.SetDefault("websearch.enabled", true)
	v.SetDefault("websearch.base_url", "https://google.serper.dev")
	v.SetDefault("websearch.limit", 20)
	v.SetDefault("websearch.timeout_secs", 15)
	v.SetDefault("fetch.enabled", true)
	v.SetDefault("fetch.allowed_domains", []string{
		"jus.br", "gov.br", "leg.br", "mp.br",
		"linkedin.com", "lattes.cnpq.br", "scielo.br",
		"globo.com", "folha.uol.com.br", "estadao.com.br", "uol.com.br", "g1.globo.com",
	})
	v.SetDefault("fetch.max_bytes", 512*1024)
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.concurrency", 12)
	v.SetDefault("fetch.rate_per_second", 5)
	v.SetDefault("anthropic.extract_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.synthesize_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("pipeline.freshness_days", 7)
	v.SetDefault("pipeline.adaptive_threshold", 15)
	v.SetDefault("pipeline.index_lag_days", 30)
	v.SetDefault("pipeline.min_query_length", 3)
	v.SetDefault("pipeline.max_sources_per_query", 12)

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

// Validate checks that the configuration is usable for the given mode
// ("run" or "migrate"). Collects every problem instead of stopping at the
// first.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Judicial.Enabled && c.Judicial.Key == "" {
			problems = append(problems, "judicial.key is required when judicial.enabled")
		}
		if c.WebSearch.Enabled && c.WebSearch.Key == "" {
			problems = append(problems, "websearch.key is required when websearch.enabled")
		}
		if c.Fetch.Concurrency < 1 || c.Fetch.Concurrency > 50 {
			problems = append(problems, "fetch.concurrency must be between 1 and 50")
		}
		if c.Pipeline.FreshnessDays < 0 {
			problems = append(problems, "pipeline.freshness_days must be >= 0")
		}
	case "migrate":
		// Store checks below are enough.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			problems = append(problems, "store.sqlite_path is required for the sqlite driver")
		}
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
