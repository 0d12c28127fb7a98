package client

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"apilens/lens-go/pkg/record"
	"apilens/lens-go/pkg/telemetry/metrics"
)

// Client buffers telemetry records in a bounded FIFO queue and delivers them
// to the ingest endpoint in batches. All methods are safe for concurrent use.
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.ClientMetrics
	instanceID string

	// enabled gates capture. Shutdown flips it off so in-flight requests
	// stop enqueuing while the final drain runs.
	enabled atomic.Bool

	// mu guards queue and dropped, the only shared mutable state.
	mu      sync.Mutex
	queue   []record.Record
	dropped int64

	schedMu sync.Mutex
	running bool
	stop    chan struct{}
	wake    chan struct{}
	wg      sync.WaitGroup

	// failureWarn throttles delivery-failure warnings during sustained
	// outages.
	failureWarn *rate.Limiter
}

// New constructs a client, applying defaults and validating the
// configuration. A missing API key or an unparsable base URL is a fatal
// construction error. When the client is enabled, the background flush
// scheduler starts immediately.
func New(cfg Config) (*Client, error) {
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	endpoint, err := ResolveEndpoint(cfg.BaseURL, cfg.IngestPath)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "lens.client")
	}

	c := &Client{
		cfg:         cfg,
		endpoint:    endpoint,
		httpClient:  &http.Client{Transport: cfg.Transport},
		logger:      logger,
		metrics:     cfg.Metrics,
		instanceID:  uuid.NewString(),
		queue:       make([]record.Record, 0, cfg.BatchSize),
		wake:        make(chan struct{}, 1),
		failureWarn: rate.NewLimiter(rate.Every(10*time.Second), 3),
	}
	c.enabled.Store(cfg.IsEnabled())

	if c.enabled.Load() {
		c.Start()
	}

	return c, nil
}

// Capture normalizes one observation and enqueues the resulting record.
// It never performs I/O and returns promptly regardless of network state.
// Disabled clients ignore the call. Reaching the batch size kicks an
// asynchronous flush without blocking the caller.
func (c *Client) Capture(in record.Input) {
	if !c.enabled.Load() {
		return
	}

	rec := record.Normalize(in, record.Defaults{Environment: c.cfg.Environment})

	c.mu.Lock()
	evicted := false
	if len(c.queue) >= c.cfg.MaxQueueSize {
		// Drop the oldest record. Shift in place so the backing array
		// does not grow without bound.
		copy(c.queue, c.queue[1:])
		c.queue = c.queue[:len(c.queue)-1]
		c.dropped++
		evicted = true
	}
	c.queue = append(c.queue, rec)
	depth := len(c.queue)
	c.mu.Unlock()

	c.metrics.RecordCaptured()
	if evicted {
		c.metrics.RecordDropped()
	}
	c.metrics.SetQueueDepth(depth)

	if depth >= c.cfg.BatchSize {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

// CaptureMany applies Capture to each input in order.
func (c *Client) CaptureMany(inputs []record.Input) {
	for _, in := range inputs {
		c.Capture(in)
	}
}

// Start arms the periodic flush timer. It is a no-op while the scheduler is
// already running or when the client is disabled.
func (c *Client) Start() {
	c.schedMu.Lock()
	defer c.schedMu.Unlock()

	if c.running || !c.enabled.Load() {
		return
	}

	c.stop = make(chan struct{})
	c.running = true
	c.wg.Add(1)
	go c.run(c.stop)

	c.logger.Debug("flush scheduler started",
		"flush_interval", c.cfg.FlushInterval,
		"batch_size", c.cfg.BatchSize,
	)
}

// Stop disarms the flush timer and waits for the scheduler goroutine to
// exit. It is idempotent. Queued records stay queued; use FlushAll or
// Shutdown to drain them.
func (c *Client) Stop() {
	c.schedMu.Lock()
	if !c.running {
		c.schedMu.Unlock()
		return
	}
	close(c.stop)
	c.running = false
	c.schedMu.Unlock()

	c.wg.Wait()
	c.logger.Debug("flush scheduler stopped")
}

// run is the scheduler goroutine: it flushes one batch per timer tick and
// whenever capture signals that the queue reached the batch size.
func (c *Client) run(stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		case <-c.wake:
		}
		c.FlushOnce()
	}
}

// FlushOnce removes up to one batch from the front of the queue and attempts
// delivery. It returns the number of records sent, 0 when the queue was
// empty or the batch was dropped after retry exhaustion. A dropped batch is
// never re-enqueued.
func (c *Client) FlushOnce() int {
	batch := c.popBatch()
	if len(batch) == 0 {
		return 0
	}

	start := time.Now()
	if !c.sendBatchWithRetry(batch) {
		c.logger.Warn("ingest failed, dropping batch", "batch_size", len(batch))
		c.metrics.RecordBatchDropped()
		return 0
	}

	c.metrics.RecordBatchSent(len(batch), time.Since(start))
	return len(batch)
}

// FlushAll flushes batches until the queue is empty or a flush fails,
// returning the total records sent. It makes async delivery deterministic in
// tests and drains the queue during graceful shutdown.
func (c *Client) FlushAll() int {
	total := 0
	for {
		n := c.FlushOnce()
		if n == 0 {
			return total
		}
		total += n
	}
}

// Shutdown disables capture, stops the flush scheduler and, when flush is
// true, synchronously drains the queue. It returns the number of records
// sent during the drain. Shutdown is best-effort: delivery failures during
// the drain fall back to the usual drop-after-retry policy.
func (c *Client) Shutdown(flush bool) int {
	c.enabled.Store(false)
	c.Stop()

	sent := 0
	if flush {
		sent = c.FlushAll()
	}

	c.logger.Info("client shut down", "flushed_records", sent, "dropped_records", c.Dropped())
	return sent
}

// popBatch atomically removes up to BatchSize records from the queue front.
// Concurrent captures land either in this batch's remainder or in a later
// one, never both.
func (c *Client) popBatch() []record.Record {
	c.mu.Lock()
	if len(c.queue) == 0 {
		c.mu.Unlock()
		return nil
	}

	n := c.cfg.BatchSize
	if n > len(c.queue) {
		n = len(c.queue)
	}

	batch := make([]record.Record, n)
	copy(batch, c.queue[:n])
	remaining := copy(c.queue, c.queue[n:])
	c.queue = c.queue[:remaining]
	depth := len(c.queue)
	c.mu.Unlock()

	c.metrics.SetQueueDepth(depth)
	return batch
}

// Dropped returns the monotonic count of records evicted by the overflow
// policy.
func (c *Client) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// QueueDepth returns the current number of queued records.
func (c *Client) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Endpoint returns the resolved ingest URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// InstanceID returns the UUID identifying this client instance on outbound
// batches.
func (c *Client) InstanceID() string {
	return c.instanceID
}

// Enabled reports whether the client currently accepts captures.
func (c *Client) Enabled() bool {
	return c.enabled.Load()
}

// Environment returns the environment stamped on captured records.
func (c *Client) Environment() string {
	if c.cfg.Environment != "" {
		return c.cfg.Environment
	}
	return record.DefaultEnvironment
}
