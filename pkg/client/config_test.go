package client

import (
	"errors"
	"testing"
	"time"
)

// TestApplyDefaults verifies every unset field picks up its documented
// default.
func TestApplyDefaults(t *testing.T) {
	cfg := Config{APIKey: "key"}
	ApplyDefaults(&cfg)

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.IngestPath != DefaultIngestPath {
		t.Errorf("IngestPath = %q, want %q", cfg.IngestPath, DefaultIngestPath)
	}
	if cfg.BatchSize != 200 {
		t.Errorf("BatchSize = %d, want 200", cfg.BatchSize)
	}
	if cfg.FlushInterval != 3*time.Second {
		t.Errorf("FlushInterval = %s, want 3s", cfg.FlushInterval)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s, want 5s", cfg.Timeout)
	}
	if cfg.MaxQueueSize != 10000 {
		t.Errorf("MaxQueueSize = %d, want 10000", cfg.MaxQueueSize)
	}
	if cfg.MaxRetries == nil || *cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %v, want 3", cfg.MaxRetries)
	}
	if cfg.RetryBackoffBase != 250*time.Millisecond {
		t.Errorf("RetryBackoffBase = %s, want 250ms", cfg.RetryBackoffBase)
	}
	if cfg.RetryBackoffMax != 5*time.Second {
		t.Errorf("RetryBackoffMax = %s, want 5s", cfg.RetryBackoffMax)
	}
	if !cfg.IsEnabled() {
		t.Error("IsEnabled() = false after defaults, want true")
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, DefaultUserAgent)
	}

	// Defaults must not clobber explicit values.
	cfg2 := Config{APIKey: "key", BatchSize: 50, Enabled: Bool(false), MaxRetries: Int(0)}
	ApplyDefaults(&cfg2)
	if cfg2.BatchSize != 50 {
		t.Errorf("BatchSize = %d, want 50", cfg2.BatchSize)
	}
	if cfg2.IsEnabled() {
		t.Error("IsEnabled() = true, explicit false was overwritten")
	}
	if *cfg2.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, explicit zero was overwritten", *cfg2.MaxRetries)
	}
}

// TestValidate covers the construction-time fatal errors.
func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{APIKey: "key"}
		ApplyDefaults(&cfg)
		return cfg
	}

	t.Run("valid config passes", func(t *testing.T) {
		cfg := valid()
		if err := Validate(&cfg); err != nil {
			t.Errorf("Validate() failed: %v", err)
		}
	})

	t.Run("missing api key", func(t *testing.T) {
		cfg := valid()
		cfg.APIKey = ""
		if err := Validate(&cfg); !errors.Is(err, ErrMissingAPIKey) {
			t.Errorf("Validate() = %v, want ErrMissingAPIKey", err)
		}
	})

	t.Run("batch size above server limit", func(t *testing.T) {
		cfg := valid()
		cfg.BatchSize = MaxBatchSize + 1
		if err := Validate(&cfg); err == nil {
			t.Error("Validate() accepted batch size above server limit")
		}
	})

	t.Run("queue smaller than batch", func(t *testing.T) {
		cfg := valid()
		cfg.BatchSize = 100
		cfg.MaxQueueSize = 10
		if err := Validate(&cfg); err == nil {
			t.Error("Validate() accepted max_queue_size < batch_size")
		}
	})

	t.Run("negative retries", func(t *testing.T) {
		cfg := valid()
		cfg.MaxRetries = Int(-1)
		if err := Validate(&cfg); err == nil {
			t.Error("Validate() accepted negative max_retries")
		}
	})

	t.Run("unusable base url", func(t *testing.T) {
		cfg := valid()
		cfg.BaseURL = "not-a-url"
		if err := Validate(&cfg); err == nil {
			t.Error("Validate() accepted unusable base url")
		}
	})
}
