package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"apilens/lens-go/pkg/record"
)

// batchPayload is the ingest request body: {"requests": [...]}.
type batchPayload struct {
	Requests []record.Record `json:"requests"`
}

// sendBatch serializes one batch and POSTs it to the resolved endpoint with
// the configured hard timeout. Any transport failure or non-2xx status is an
// error; the retry controller treats every error as retryable.
func (c *Client) sendBatch(ctx context.Context, batch []record.Record) error {
	body, err := json.Marshal(batchPayload{Requests: batch})
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("X-Instance-Id", c.instanceID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ingest request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ingest returned status %d", resp.StatusCode)
	}
	return nil
}

// sendBatchWithRetry attempts a batch up to MaxRetries+1 times, sleeping
// min(base * 2^attempt, cap) between attempts. It holds no state between
// batches; after exhaustion the caller drops the batch.
func (c *Client) sendBatchWithRetry(batch []record.Record) bool {
	maxRetries := *c.cfg.MaxRetries
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.backoff(attempt - 1))
		}

		if err := c.sendBatch(context.Background(), batch); err != nil {
			lastErr = err
			continue
		}
		return true
	}

	if c.failureWarn.Allow() {
		c.logger.Warn("ingest request failed after retries",
			"attempts", maxRetries+1,
			"batch_size", len(batch),
			"error", lastErr,
		)
	}
	return false
}

// backoff returns the wait before re-attempting after failed attempt n
// (0-based): capped pure exponential, no jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.RetryBackoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.cfg.RetryBackoffMax || d < 0 {
			return c.cfg.RetryBackoffMax
		}
	}
	if d > c.cfg.RetryBackoffMax {
		return c.cfg.RetryBackoffMax
	}
	return d
}
