package client

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"apilens/lens-go/pkg/record"
)

// ingestDouble is a RoundTripper standing in for the ingest endpoint. It
// decodes every submitted batch and can fail the first failures calls.
type ingestDouble struct {
	mu       sync.Mutex
	calls    int
	failures int
	status   int
	batches  [][]record.Record
	headers  []http.Header
}

func (d *ingestDouble) RoundTrip(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	d.headers = append(d.headers, req.Header.Clone())

	status := d.status
	if status == 0 {
		status = http.StatusAccepted
	}
	if d.calls <= d.failures {
		status = http.StatusServiceUnavailable
	}

	if status >= 200 && status < 300 {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		var payload struct {
			Requests []record.Record `json:"requests"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, err
		}
		d.batches = append(d.batches, payload.Requests)
	}

	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     make(http.Header),
	}, nil
}

func (d *ingestDouble) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *ingestDouble) allRecords() []record.Record {
	d.mu.Lock()
	defer d.mu.Unlock()
	var all []record.Record
	for _, b := range d.batches {
		all = append(all, b...)
	}
	return all
}

// newTestClient builds a client wired to the double, with a flush interval
// long enough that only explicit flushes (or size triggers) deliver.
func newTestClient(t *testing.T, double *ingestDouble, mutate func(*Config)) *Client {
	t.Helper()

	cfg := Config{
		APIKey:           "test-key",
		BaseURL:          "http://h:8000/api/v1",
		FlushInterval:    time.Hour,
		RetryBackoffBase: time.Millisecond,
		RetryBackoffMax:  2 * time.Millisecond,
		Transport:        double,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	t.Cleanup(func() { c.Shutdown(false) })
	return c
}

// TestClient_CaptureAndFlush verifies the capture -> normalize -> queue ->
// send path produces exactly one wire record with normalized fields.
func TestClient_CaptureAndFlush(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.Environment = "staging"
	})

	c.Capture(record.Input{
		Method:         "post",
		Path:           "orders?page=2",
		StatusCode:     201,
		ResponseTimeMS: 12.5,
	})

	if n := c.FlushOnce(); n != 1 {
		t.Fatalf("FlushOnce() = %d, want 1", n)
	}

	records := double.allRecords()
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	if rec.Method != "POST" {
		t.Errorf("Method = %q, want \"POST\"", rec.Method)
	}
	if !strings.HasPrefix(rec.Path, "/") {
		t.Errorf("Path = %q, want leading slash", rec.Path)
	}
	if rec.Path != "/orders" {
		t.Errorf("Path = %q, want \"/orders\"", rec.Path)
	}
	if rec.Environment != "staging" {
		t.Errorf("Environment = %q, want \"staging\"", rec.Environment)
	}
	if rec.StatusCode != 201 {
		t.Errorf("StatusCode = %d, want 201", rec.StatusCode)
	}
}

// TestClient_IngestHeaders verifies the ingest request carries the API key,
// user agent and instance ID headers.
func TestClient_IngestHeaders(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, nil)

	c.Capture(record.Input{Method: "GET", Path: "/x"})
	c.FlushOnce()

	double.mu.Lock()
	defer double.mu.Unlock()
	if len(double.headers) != 1 {
		t.Fatalf("got %d requests, want 1", len(double.headers))
	}
	h := double.headers[0]
	if h.Get("X-API-Key") != "test-key" {
		t.Errorf("X-API-Key = %q, want \"test-key\"", h.Get("X-API-Key"))
	}
	if h.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", h.Get("Content-Type"))
	}
	if h.Get("User-Agent") != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", h.Get("User-Agent"), DefaultUserAgent)
	}
	if h.Get("X-Instance-Id") != c.InstanceID() {
		t.Errorf("X-Instance-Id = %q, want %q", h.Get("X-Instance-Id"), c.InstanceID())
	}
}

// TestClient_DropOldest verifies the overflow policy: capacity 2, capture
// /a /b /c in order, the queue holds [/b /c] and the counter reads 1.
func TestClient_DropOldest(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.MaxQueueSize = 2
		cfg.BatchSize = 2
	})

	// Keep the scheduler from draining mid-test; captures alone must not
	// perform I/O anyway.
	c.Stop()

	c.Capture(record.Input{Path: "/a"})
	c.Capture(record.Input{Path: "/b"})
	c.Capture(record.Input{Path: "/c"})

	if got := c.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
	if got := c.QueueDepth(); got != 2 {
		t.Errorf("QueueDepth() = %d, want 2", got)
	}

	if n := c.FlushAll(); n != 2 {
		t.Fatalf("FlushAll() = %d, want 2", n)
	}

	records := double.allRecords()
	if len(records) != 2 || records[0].Path != "/b" || records[1].Path != "/c" {
		paths := make([]string, len(records))
		for i, r := range records {
			paths[i] = r.Path
		}
		t.Errorf("delivered paths = %v, want [/b /c]", paths)
	}
}

// TestClient_RetrySucceedsWithinBudget verifies a sender that fails N <
// maxRetries times then succeeds makes exactly N+1 transport calls and the
// flush reports the batch's full size.
func TestClient_RetrySucceedsWithinBudget(t *testing.T) {
	double := &ingestDouble{failures: 2}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.MaxRetries = Int(3)
	})

	c.CaptureMany([]record.Input{
		{Path: "/a"},
		{Path: "/b"},
		{Path: "/c"},
	})

	if n := c.FlushOnce(); n != 3 {
		t.Errorf("FlushOnce() = %d, want 3", n)
	}
	if calls := double.callCount(); calls != 3 {
		t.Errorf("transport calls = %d, want 3", calls)
	}
}

// TestClient_RetryExhaustionDropsBatch verifies the at-most-once policy: a
// batch that never delivers is dropped, not re-enqueued, after exactly
// maxRetries+1 attempts.
func TestClient_RetryExhaustionDropsBatch(t *testing.T) {
	double := &ingestDouble{status: http.StatusInternalServerError}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.MaxRetries = Int(2)
	})

	c.Capture(record.Input{Path: "/doomed"})

	if n := c.FlushOnce(); n != 0 {
		t.Errorf("FlushOnce() = %d, want 0", n)
	}
	if calls := double.callCount(); calls != 3 {
		t.Errorf("transport calls = %d, want 3", calls)
	}
	if depth := c.QueueDepth(); depth != 0 {
		t.Errorf("QueueDepth() = %d after drop, want 0", depth)
	}

	// The next flush must not resurrect the dropped batch.
	if calls := double.callCount(); c.FlushOnce() != 0 || double.callCount() != calls {
		t.Error("dropped batch was re-attempted")
	}
}

// TestClient_ZeroRetriesMeansSingleAttempt verifies an explicit
// MaxRetries of 0 survives defaulting and yields exactly one delivery
// attempt per batch.
func TestClient_ZeroRetriesMeansSingleAttempt(t *testing.T) {
	double := &ingestDouble{status: http.StatusInternalServerError}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.MaxRetries = Int(0)
	})

	c.Capture(record.Input{Path: "/once"})

	if n := c.FlushOnce(); n != 0 {
		t.Errorf("FlushOnce() = %d, want 0", n)
	}
	if calls := double.callCount(); calls != 1 {
		t.Errorf("transport calls = %d, want exactly 1", calls)
	}
}

// TestClient_FlushAllEmptyQueue verifies an empty queue flushes to 0 with no
// transport traffic.
func TestClient_FlushAllEmptyQueue(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, nil)

	if n := c.FlushAll(); n != 0 {
		t.Errorf("FlushAll() = %d, want 0", n)
	}
	if calls := double.callCount(); calls != 0 {
		t.Errorf("transport calls = %d, want 0", calls)
	}
}

// TestClient_FlushAllDrainsMultipleBatches verifies FlushAll keeps flushing
// until the queue is empty, preserving FIFO order across batches.
func TestClient_FlushAllDrainsMultipleBatches(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.BatchSize = 2
		cfg.MaxQueueSize = 100
	})
	c.Stop()

	for _, p := range []string{"/1", "/2", "/3", "/4", "/5"} {
		c.Capture(record.Input{Path: p})
	}

	if n := c.FlushAll(); n != 5 {
		t.Fatalf("FlushAll() = %d, want 5", n)
	}

	records := double.allRecords()
	want := []string{"/1", "/2", "/3", "/4", "/5"}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, p := range want {
		if records[i].Path != p {
			t.Errorf("records[%d].Path = %q, want %q", i, records[i].Path, p)
		}
	}
}

// TestClient_SizeTriggeredFlush verifies reaching the batch size kicks an
// asynchronous flush without the capturing caller waiting on it.
func TestClient_SizeTriggeredFlush(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.BatchSize = 2
	})

	c.Capture(record.Input{Path: "/a"})
	c.Capture(record.Input{Path: "/b"})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(double.allRecords()) == 2 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("size-triggered flush never delivered; got %d records", len(double.allRecords()))
}

// TestClient_DisabledIsInert verifies a disabled client neither queues nor
// sends.
func TestClient_DisabledIsInert(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.Enabled = Bool(false)
	})

	c.Capture(record.Input{Path: "/ignored"})
	c.Start() // must stay a no-op while disabled

	if depth := c.QueueDepth(); depth != 0 {
		t.Errorf("QueueDepth() = %d, want 0", depth)
	}
	if n := c.FlushAll(); n != 0 {
		t.Errorf("FlushAll() = %d, want 0", n)
	}
	if calls := double.callCount(); calls != 0 {
		t.Errorf("transport calls = %d, want 0", calls)
	}
}

// TestClient_ShutdownFlushesQueue verifies every record captured before
// shutdown reaches the transport when draining is requested.
func TestClient_ShutdownFlushesQueue(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.BatchSize = 10
	})

	for _, p := range []string{"/a", "/b", "/c"} {
		c.Capture(record.Input{Path: p})
	}

	if sent := c.Shutdown(true); sent != 3 {
		t.Errorf("Shutdown(true) = %d, want 3", sent)
	}
	if len(double.allRecords()) != 3 {
		t.Errorf("delivered %d records, want 3", len(double.allRecords()))
	}

	// Capture after shutdown is a no-op.
	c.Capture(record.Input{Path: "/late"})
	if depth := c.QueueDepth(); depth != 0 {
		t.Errorf("QueueDepth() = %d after shutdown, want 0", depth)
	}
}

// TestClient_ShutdownWithFailingDelivery verifies the drop-after-retry path
// runs during shutdown instead of blocking forever.
func TestClient_ShutdownWithFailingDelivery(t *testing.T) {
	double := &ingestDouble{status: http.StatusBadGateway}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.MaxRetries = Int(1)
	})

	c.Capture(record.Input{Path: "/a"})

	if sent := c.Shutdown(true); sent != 0 {
		t.Errorf("Shutdown(true) = %d, want 0", sent)
	}
	if calls := double.callCount(); calls != 2 {
		t.Errorf("transport calls = %d, want 2", calls)
	}
}

// TestClient_StartStopIdempotent verifies scheduler state transitions.
func TestClient_StartStopIdempotent(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, nil)

	c.Start()
	c.Start()
	c.Stop()
	c.Stop()
	c.Start()
	c.Stop()
}

// TestClient_ConcurrentCapture verifies capture under contention loses
// nothing when the queue has room.
func TestClient_ConcurrentCapture(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.BatchSize = 500
		cfg.MaxQueueSize = 5000
	})
	c.Stop()

	const goroutines = 8
	const perGoroutine = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				c.Capture(record.Input{Path: "/load"})
			}
		}()
	}
	wg.Wait()

	if depth := c.QueueDepth(); depth != goroutines*perGoroutine {
		t.Errorf("QueueDepth() = %d, want %d", depth, goroutines*perGoroutine)
	}
	if dropped := c.Dropped(); dropped != 0 {
		t.Errorf("Dropped() = %d, want 0", dropped)
	}
}

// TestClient_NewValidates verifies construction-time fatal errors surface
// from New.
func TestClient_NewValidates(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() accepted a config without an API key")
	}
	if _, err := New(Config{APIKey: "k", BaseURL: "not-a-url"}); err == nil {
		t.Error("New() accepted an unusable base url")
	}
}

// TestBackoff verifies the capped exponential schedule.
func TestBackoff(t *testing.T) {
	double := &ingestDouble{}
	c := newTestClient(t, double, func(cfg *Config) {
		cfg.RetryBackoffBase = 250 * time.Millisecond
		cfg.RetryBackoffMax = 5 * time.Second
	})

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 250 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 4 * time.Second},
		{5, 5 * time.Second}, // capped
		{20, 5 * time.Second},
	}

	for _, tt := range tests {
		if got := c.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}
