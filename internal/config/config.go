// Package config loads codeguard configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/codeguard-mcp/pkg/types"
)

// Environment variables
const (
	EnvEndpoint           = "SRC_ENDPOINT"
	EnvAccessToken        = "SRC_ACCESS_TOKEN"
	EnvCacheTTL           = "CODEGUARD_CACHE_TTL"
	EnvCleanupInterval    = "CODEGUARD_CLEANUP_INTERVAL"
	EnvSearchTimeout      = "CODEGUARD_SEARCH_TIMEOUT"
	EnvLogLevel           = "CODEGUARD_LOG_LEVEL"
	EnvDBPath             = "CODEGUARD_DB_PATH"
	EnvMaxDuplicates      = "CODEGUARD_MAX_DUPLICATES"
	EnvMaxSymbolLocations = "CODEGUARD_MAX_SYMBOL_LOCATIONS"
)

// Defaults
const (
	DefaultEndpoint               = "https://sourcegraph.com"
	DefaultCacheTTL               = 5 * time.Minute
	DefaultCleanupInterval        = 60 * time.Second
	DefaultCacheMaxEntries        = 10000
	DefaultSearchTimeout          = 10 * time.Second
	DefaultResultCount            = 50
	DefaultSymbolPageSize         = 20
	DefaultMaxRetries             = 3
	DefaultRetryBaseDelay         = 2 * time.Second
	DefaultRetryMaxDelay          = 30 * time.Second
	DefaultMaxDuplicateLocations  = 3
	DefaultMaxSymbolLocations     = 3
	DefaultSimilarReviewThreshold = 5
	DefaultIncidentRetention      = 7 * 24 * time.Hour
	DefaultDBPath                 = "~/.codeguard/incidents.db"
)

var (
	// ErrMissingToken is returned when no access token is configured
	ErrMissingToken = types.ErrMissingToken
	// ErrInvalidConfig wraps all other validation failures
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the full client configuration
type Config struct {
	Endpoint  string          `yaml:"endpoint"`
	Token     string          `yaml:"token"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Retry     RetryConfig     `yaml:"retry"`
	Policy    PolicyConfig    `yaml:"policy"`
	Logging   LoggingConfig   `yaml:"logging"`
	Incidents IncidentsConfig `yaml:"incidents"`
}

// CacheConfig controls the query result cache
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	MaxEntries      int           `yaml:"max_entries"`
}

// SearchConfig controls per-query defaults
type SearchConfig struct {
	Timeout        time.Duration `yaml:"timeout"`
	DefaultCount   int           `yaml:"default_count"`
	SymbolPageSize int           `yaml:"symbol_page_size"`
}

// RetryConfig controls transport retries
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// PolicyConfig holds the composite analysis thresholds
type PolicyConfig struct {
	MaxDuplicateLocations  int `yaml:"max_duplicate_locations"`
	MaxSymbolLocations     int `yaml:"max_symbol_locations"`
	SimilarReviewThreshold int `yaml:"similar_review_threshold"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// IncidentsConfig controls the local error-tracking store
type IncidentsConfig struct {
	Enabled   bool          `yaml:"enabled"`
	DBPath    string        `yaml:"db_path"`
	Retention time.Duration `yaml:"retention"`
}

// Default returns a configuration populated with defaults and no token
func Default() *Config {
	return &Config{
		Endpoint: DefaultEndpoint,
		Cache: CacheConfig{
			TTL:             DefaultCacheTTL,
			CleanupInterval: DefaultCleanupInterval,
			MaxEntries:      DefaultCacheMaxEntries,
		},
		Search: SearchConfig{
			Timeout:        DefaultSearchTimeout,
			DefaultCount:   DefaultResultCount,
			SymbolPageSize: DefaultSymbolPageSize,
		},
		Retry: RetryConfig{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  DefaultRetryBaseDelay,
			MaxDelay:   DefaultRetryMaxDelay,
		},
		Policy: PolicyConfig{
			MaxDuplicateLocations:  DefaultMaxDuplicateLocations,
			MaxSymbolLocations:     DefaultMaxSymbolLocations,
			SimilarReviewThreshold: DefaultSimilarReviewThreshold,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Incidents: IncidentsConfig{
			Enabled:   true,
			DBPath:    DefaultDBPath,
			Retention: DefaultIncidentRetention,
		},
	}
}

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overrides fields from environment variables
func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvAccessToken); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Incidents.DBPath = v
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{EnvCacheTTL, &c.Cache.TTL},
		{EnvCleanupInterval, &c.Cache.CleanupInterval},
		{EnvSearchTimeout, &c.Search.Timeout},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, d.env, v, err)
		}
		*d.dst = parsed
	}

	ints := []struct {
		env string
		dst *int
	}{
		{EnvMaxDuplicates, &c.Policy.MaxDuplicateLocations},
		{EnvMaxSymbolLocations, &c.Policy.MaxSymbolLocations},
	}
	for _, n := range ints {
		v := os.Getenv(n.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, n.env, v, err)
		}
		*n.dst = parsed
	}

	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Token) == "" {
		return fmt.Errorf("%w: set %s", ErrMissingToken, EnvAccessToken)
	}
	if c.Endpoint == "" {
		return fmt.Errorf("%w: endpoint is empty", ErrInvalidConfig)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive", ErrInvalidConfig)
	}
	if c.Cache.CleanupInterval <= 0 {
		return fmt.Errorf("%w: cache cleanup interval must be positive", ErrInvalidConfig)
	}
	if c.Search.Timeout <= 0 {
		return fmt.Errorf("%w: search timeout must be positive", ErrInvalidConfig)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("%w: max retries cannot be negative", ErrInvalidConfig)
	}
	if c.Policy.MaxDuplicateLocations < 0 || c.Policy.MaxSymbolLocations < 0 || c.Policy.SimilarReviewThreshold < 0 {
		return fmt.Errorf("%w: policy thresholds cannot be negative", ErrInvalidConfig)
	}
	return nil
}
