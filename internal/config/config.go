// Package config loads application configuration from an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. Environment variables override
// values from the YAML file; command-line flags override both.
type Config struct {
	GitHubToken          string        `yaml:"github_token"`
	APIBaseURL           string        `yaml:"api_base_url"`
	DBPath               string        `yaml:"db_path"`
	DatabaseURL          string        `yaml:"database_url"`
	ResultsDir           string        `yaml:"results_dir"`
	Concurrency          int           `yaml:"concurrency"`
	MaxRetries           int           `yaml:"max_retries"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	RateLimitThreshold   int           `yaml:"rate_limit_threshold"`
	RateLimitMargin      time.Duration `yaml:"rate_limit_margin"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	OTELEndpoint         string        `yaml:"otel_endpoint"`
	OTELInsecure         bool          `yaml:"otel_insecure"`
}

// tokenVars are checked in order; the first non-empty one wins.
var tokenVars = []string{"GITHUB_ACCESS_TOKEN", "WORKKNOW_GITHUB_TOKEN", "GITHUB_TOKEN"}

// HasGitHubCredentials reports whether an access token is configured.
func (c *Config) HasGitHubCredentials() bool {
	return c.GitHubToken != ""
}

// UsePostgres reports whether runs are stored in PostgreSQL instead of SQLite.
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

func defaults() Config {
	return Config{
		DBPath:               "workknow.db",
		ResultsDir:           "results",
		Concurrency:          1,
		MaxRetries:           3,
		RetryInitialInterval: time.Second,
		RateLimitThreshold:   10,
		RateLimitMargin:      2 * time.Second,
		RequestTimeout:       30 * time.Second,
	}
}

// Load builds a validated Config. path names an optional YAML file; when
// empty, WORKKNOW_CONFIG is consulted. A named file that cannot be read is an
// error. The GitHub token comes from GITHUB_ACCESS_TOKEN, WORKKNOW_GITHUB_TOKEN
// or GITHUB_TOKEN, in that order. Other variables use the WORKKNOW_ prefix:
// API_BASE_URL, DB_PATH (workknow.db), DATABASE_URL, RESULTS_DIR (results),
// CONCURRENCY (1), MAX_RETRIES (3), RETRY_INITIAL_INTERVAL (1s),
// RATE_LIMIT_THRESHOLD (10), RATE_LIMIT_MARGIN (2s), REQUEST_TIMEOUT (30s),
// OTEL_ENDPOINT and OTEL_INSECURE.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path == "" {
		path = os.Getenv("WORKKNOW_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	for _, key := range tokenVars {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.GitHubToken = v
			break
		}
	}

	lookupString("WORKKNOW_API_BASE_URL", &cfg.APIBaseURL)
	lookupString("WORKKNOW_DB_PATH", &cfg.DBPath)
	lookupString("WORKKNOW_DATABASE_URL", &cfg.DatabaseURL)
	lookupString("WORKKNOW_RESULTS_DIR", &cfg.ResultsDir)
	lookupString("WORKKNOW_OTEL_ENDPOINT", &cfg.OTELEndpoint)

	var errs []error
	errs = append(errs,
		lookupInt("WORKKNOW_CONCURRENCY", &cfg.Concurrency),
		lookupInt("WORKKNOW_MAX_RETRIES", &cfg.MaxRetries),
		lookupInt("WORKKNOW_RATE_LIMIT_THRESHOLD", &cfg.RateLimitThreshold),
		lookupDuration("WORKKNOW_RETRY_INITIAL_INTERVAL", &cfg.RetryInitialInterval),
		lookupDuration("WORKKNOW_RATE_LIMIT_MARGIN", &cfg.RateLimitMargin),
		lookupDuration("WORKKNOW_REQUEST_TIMEOUT", &cfg.RequestTimeout),
		lookupBool("WORKKNOW_OTEL_INSECURE", &cfg.OTELInsecure),
	)
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks value ranges. It is called again after flags are applied.
func (c *Config) Validate() error {
	var errs []error
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries))
	}
	if c.RateLimitThreshold < 0 {
		errs = append(errs, fmt.Errorf("rate limit threshold must not be negative, got %d", c.RateLimitThreshold))
	}
	if c.RetryInitialInterval <= 0 {
		errs = append(errs, fmt.Errorf("retry initial interval must be positive, got %s", c.RetryInitialInterval))
	}
	if c.RateLimitMargin < 0 {
		errs = append(errs, fmt.Errorf("rate limit margin must not be negative, got %s", c.RateLimitMargin))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %s", c.RequestTimeout))
	}
	if c.DBPath == "" && c.DatabaseURL == "" {
		errs = append(errs, errors.New("either a SQLite path or a database URL is required"))
	}
	return errors.Join(errs...)
}

func lookupString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func lookupInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func lookupDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func lookupBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s has invalid boolean %q: %w", key, v, err)
	}
	*dst = b
	return nil
}
