package client

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads a client configuration from a YAML file, applies
// defaults and validates the result. Environment variables are not
// consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads a YAML configuration and applies
// APILENS_* environment variable overrides on top. Environment variables
// always win over file values. The sequence is: parse file, apply defaults,
// apply overrides, re-validate.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides overwrites configuration fields from APILENS_*
// environment variables. Unparsable numeric, duration or boolean values are
// ignored, leaving the existing field untouched.
func ApplyEnvOverrides(cfg *Config) {
	if val := os.Getenv("APILENS_API_KEY"); val != "" {
		cfg.APIKey = val
	}
	if val := os.Getenv("APILENS_BASE_URL"); val != "" {
		cfg.BaseURL = val
	}
	if val := os.Getenv("APILENS_INGEST_PATH"); val != "" {
		cfg.IngestPath = val
	}
	if val := os.Getenv("APILENS_ENVIRONMENT"); val != "" {
		cfg.Environment = val
	}
	if val := os.Getenv("APILENS_BATCH_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.BatchSize = n
		}
	}
	if val := os.Getenv("APILENS_FLUSH_INTERVAL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.FlushInterval = d
		}
	}
	if val := os.Getenv("APILENS_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Timeout = d
		}
	}
	if val := os.Getenv("APILENS_MAX_QUEUE_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxQueueSize = n
		}
	}
	if val := os.Getenv("APILENS_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxRetries = Int(n)
		}
	}
	if val := os.Getenv("APILENS_RETRY_BACKOFF_BASE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.RetryBackoffBase = d
		}
	}
	if val := os.Getenv("APILENS_RETRY_BACKOFF_MAX"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.RetryBackoffMax = d
		}
	}
	if val := os.Getenv("APILENS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Enabled = Bool(b)
		}
	}
	if val := os.Getenv("APILENS_USER_AGENT"); val != "" {
		cfg.UserAgent = val
	}
}
