package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"apilens/lens-go/pkg/telemetry/metrics"
)

// Version is the SDK release version, reported in the default User-Agent.
const Version = "0.1.0"

// Default configuration values. They match the contract of the hosted ingest
// endpoint; batch sizes above MaxBatchSize are rejected server-side.
const (
	DefaultBaseURL          = "https://api.apilens.ai/api/v1"
	DefaultIngestPath       = "ingest/requests"
	DefaultBatchSize        = 200
	DefaultFlushInterval    = 3 * time.Second
	DefaultTimeout          = 5 * time.Second
	DefaultMaxQueueSize     = 10000
	DefaultMaxRetries       = 3
	DefaultRetryBackoffBase = 250 * time.Millisecond
	DefaultRetryBackoffMax  = 5 * time.Second

	// MaxBatchSize is the largest batch the ingest endpoint accepts in one
	// request.
	MaxBatchSize = 1000
)

// DefaultUserAgent identifies the SDK on outbound ingest requests.
const DefaultUserAgent = "lens-go-sdk/" + Version

// ErrMissingAPIKey is returned by New when the configuration has no API key.
var ErrMissingAPIKey = errors.New("api key is required")

// Config controls client construction. It is read once by New and never
// consulted again; a running client's configuration is immutable.
type Config struct {
	// APIKey authenticates batches at the ingest endpoint. Required.
	APIKey string `yaml:"api_key"`

	// BaseURL is the root of the telemetry API.
	// Default: https://api.apilens.ai/api/v1
	BaseURL string `yaml:"base_url"`

	// IngestPath selects the ingest endpoint relative to BaseURL. Three
	// forms are recognized, checked in order: an absolute http(s) URL is
	// used verbatim; a "/"-prefixed path is resolved against BaseURL's
	// origin only; anything else is appended under BaseURL's full path.
	// Default: "ingest/requests"
	IngestPath string `yaml:"ingest_path"`

	// Environment stamps every captured record. Default: "production".
	Environment string `yaml:"environment"`

	// BatchSize is the number of records per delivery attempt, 1 to
	// MaxBatchSize. Default: 200.
	BatchSize int `yaml:"batch_size"`

	// FlushInterval is the period of the background flush timer.
	// Default: 3s.
	FlushInterval time.Duration `yaml:"flush_interval"`

	// Timeout bounds each ingest POST, including connection setup.
	// Default: 5s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxQueueSize caps the in-memory queue. At capacity the oldest record
	// is evicted. Default: 10000.
	MaxQueueSize int `yaml:"max_queue_size"`

	// MaxRetries is the number of re-attempts after a failed send, so a
	// batch sees MaxRetries+1 attempts total. nil means the default of 3;
	// an explicit 0 disables retries.
	MaxRetries *int `yaml:"max_retries"`

	// RetryBackoffBase and RetryBackoffMax shape the capped exponential
	// backoff between attempts: min(base * 2^attempt, max), no jitter.
	// Defaults: 250ms and 5s.
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base"`
	RetryBackoffMax  time.Duration `yaml:"retry_backoff_max"`

	// Enabled turns capture and delivery on. nil means true; a disabled
	// client accepts Capture calls as no-ops and never starts its
	// scheduler.
	Enabled *bool `yaml:"enabled"`

	// UserAgent overrides the User-Agent header on ingest requests.
	UserAgent string `yaml:"user_agent"`

	// Transport substitutes the HTTP transport used for ingest requests.
	// nil means http.DefaultTransport. Tests inject doubles here.
	Transport http.RoundTripper `yaml:"-"`

	// Logger receives the client's diagnostics. nil means slog.Default()
	// scoped with component=lens.client.
	Logger *slog.Logger `yaml:"-"`

	// Metrics receives self-metrics. nil disables them.
	Metrics *metrics.ClientMetrics `yaml:"-"`
}

// Bool returns a pointer to v, for populating Config.Enabled from a literal.
func Bool(v bool) *bool {
	return &v
}

// Int returns a pointer to v, for populating Config.MaxRetries from a literal.
func Int(v int) *int {
	return &v
}

// IsEnabled reports the effective enabled flag, treating nil as true.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ApplyDefaults fills unset fields with the package defaults. It is called
// by New and by the file loader; calling it again is harmless.
func ApplyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.IngestPath == "" {
		cfg.IngestPath = DefaultIngestPath
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxQueueSize == 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.MaxRetries == nil {
		cfg.MaxRetries = Int(DefaultMaxRetries)
	}
	if cfg.RetryBackoffBase == 0 {
		cfg.RetryBackoffBase = DefaultRetryBackoffBase
	}
	if cfg.RetryBackoffMax == 0 {
		cfg.RetryBackoffMax = DefaultRetryBackoffMax
	}
	if cfg.Enabled == nil {
		cfg.Enabled = Bool(true)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
}

// Validate checks the configuration for construction-time fatal errors.
// It assumes defaults have been applied.
func Validate(cfg *Config) error {
	if cfg.APIKey == "" {
		return ErrMissingAPIKey
	}
	if cfg.BatchSize < 1 || cfg.BatchSize > MaxBatchSize {
		return fmt.Errorf("batch_size must be between 1 and %d, got %d", MaxBatchSize, cfg.BatchSize)
	}
	if cfg.MaxQueueSize < 1 {
		return fmt.Errorf("max_queue_size must be positive, got %d", cfg.MaxQueueSize)
	}
	if cfg.MaxQueueSize < cfg.BatchSize {
		return fmt.Errorf("max_queue_size (%d) must be at least batch_size (%d)", cfg.MaxQueueSize, cfg.BatchSize)
	}
	if *cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", *cfg.MaxRetries)
	}
	if cfg.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive, got %s", cfg.FlushInterval)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", cfg.Timeout)
	}
	if cfg.RetryBackoffBase < 0 || cfg.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff durations must not be negative")
	}
	if _, err := ResolveEndpoint(cfg.BaseURL, cfg.IngestPath); err != nil {
		return err
	}
	return nil
}
