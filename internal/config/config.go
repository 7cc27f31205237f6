// Package config handles configuration loading for fairvalue.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Screener  ScreenerConfig  `mapstructure:"screener"  json:"screener"  yaml:"screener"`
	Cache     CacheConfig     `mapstructure:"cache"     json:"cache"     yaml:"cache"`
	Valuation ValuationConfig `mapstructure:"valuation" json:"valuation" yaml:"valuation"`
	API       APIConfig       `mapstructure:"api"       json:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   json:"logging"   yaml:"logging"`
}

// ScreenerConfig controls how company pages are fetched.
type ScreenerConfig struct {
	BaseURL      string `mapstructure:"base_url"     json:"base_url"     yaml:"base_url"`
	UserAgent    string `mapstructure:"user_agent"   json:"user_agent"   yaml:"user_agent"`
	TimeoutSec   int    `mapstructure:"timeout_sec"  json:"timeout_sec"  yaml:"timeout_sec"`
	RatePerSec   int    `mapstructure:"rate_per_sec" json:"rate_per_sec" yaml:"rate_per_sec"`
	Consolidated bool   `mapstructure:"consolidated" json:"consolidated" yaml:"consolidated"` // prefer consolidated statements
}

// Timeout returns the page request timeout.
func (c ScreenerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// CacheConfig selects and tunes the financials cache.
type CacheConfig struct {
	Backend           string `mapstructure:"backend"            json:"backend"            yaml:"backend"` // "memory" or "postgres"
	TTLSec            int    `mapstructure:"ttl_sec"            json:"ttl_sec"            yaml:"ttl_sec"`
	DatabaseURL       string `mapstructure:"database_url"       json:"database_url"       yaml:"database_url"`
	Table             string `mapstructure:"table"              json:"table"              yaml:"table"`
	ConcurrentFetches int    `mapstructure:"concurrent_fetches" json:"concurrent_fetches" yaml:"concurrent_fetches"`
}

// TTL returns the staleness window for cached financials.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// ValuationConfig holds default DCF assumptions used when a request omits them.
type ValuationConfig struct {
	WACC           float64   `mapstructure:"wacc"            json:"wacc"            yaml:"wacc"`
	TerminalGrowth float64   `mapstructure:"terminal_growth" json:"terminal_growth" yaml:"terminal_growth"`
	GrowthPath     []float64 `mapstructure:"growth_path"     json:"growth_path"     yaml:"growth_path"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         json:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         json:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins" yaml:"cors_origins"`
	ServeUI     bool     `mapstructure:"serve_ui"     json:"serve_ui"     yaml:"serve_ui"`
}

// Addr returns host:port.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  json:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" json:"format" yaml:"format"` // "text" or "json"
}

const envPrefix = "FAIRVALUE"

// The cache table name is interpolated into SQL.
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.fairvalue/config.yaml (home directory)
//  3. /etc/fairvalue/config.yaml (system)
//
// A .env file in the working directory is loaded first if present.
// Environment variables override config file values.
// Format: FAIRVALUE_<SECTION>_<KEY>, e.g., FAIRVALUE_CACHE_DATABASE_URL
func Load() (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".fairvalue"))
	v.AddConfigPath("/etc/fairvalue")

	// Config file is optional; defaults + env vars are enough to run.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadDotEnv()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Screener defaults
	v.SetDefault("screener.base_url", "https://www.screener.in")
	v.SetDefault("screener.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	v.SetDefault("screener.timeout_sec", 10)
	v.SetDefault("screener.rate_per_sec", 1) // conservative: 1 req/s
	v.SetDefault("screener.consolidated", false)

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_sec", 6*60*60) // 6 hours
	v.SetDefault("cache.database_url", "")
	v.SetDefault("cache.table", "financials_cache")
	v.SetDefault("cache.concurrent_fetches", 4)

	// Valuation defaults
	v.SetDefault("valuation.wacc", 0.12)
	v.SetDefault("valuation.terminal_growth", 0.04)
	v.SetDefault("valuation.growth_path", []float64{0.10, 0.10, 0.10, 0.08, 0.08})

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
	v.SetDefault("api.cors_origins", []string{"*"})
	v.SetDefault("api.serve_ui", true)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks enumerated settings and numeric ranges.
func (c *Config) Validate() error {
	var problems []string
	if !slices.Contains([]string{"memory", "postgres"}, c.Cache.Backend) {
		problems = append(problems, fmt.Sprintf("cache.backend must be memory or postgres, got %q", c.Cache.Backend))
	}
	if c.Cache.Backend == "postgres" && c.Cache.DatabaseURL == "" {
		problems = append(problems, "cache.database_url is required for the postgres backend")
	}
	if c.Cache.Table != "" && !tableName.MatchString(c.Cache.Table) {
		problems = append(problems, fmt.Sprintf("cache.table %q is not a plain SQL identifier", c.Cache.Table))
	}
	if c.Cache.TTLSec <= 0 {
		problems = append(problems, "cache.ttl_sec must be positive")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Logging.Format)) {
		problems = append(problems, fmt.Sprintf("logging.format %q is not text or json", c.Logging.Format))
	}
	if c.Valuation.WACC <= c.Valuation.TerminalGrowth {
		problems = append(problems, "valuation.wacc must exceed valuation.terminal_growth")
	}
	if len(c.Valuation.GrowthPath) == 0 {
		problems = append(problems, "valuation.growth_path must not be empty")
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		problems = append(problems, fmt.Sprintf("api.port %d out of range", c.API.Port))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// DATABASE_URL is honoured as a fallback for hosted Postgres providers.
func overrideFromEnv(cfg *Config) {
	if url := os.Getenv("FAIRVALUE_CACHE_DATABASE_URL"); url != "" {
		cfg.Cache.DatabaseURL = url
	} else if cfg.Cache.DatabaseURL == "" {
		cfg.Cache.DatabaseURL = os.Getenv("DATABASE_URL")
	}
}

// loadDotEnv loads ./.env without overriding variables already set.
func loadDotEnv() {
	_ = godotenv.Load()
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
