// Package client implements the framework-agnostic capture client: a bounded
// in-memory queue of telemetry records, a background flush scheduler, and a
// batched ingest sender with capped exponential backoff.
//
// # Overview
//
// One client instance is shared by every concurrently handled request in a
// process. Capture is a pure in-memory mutation and never performs I/O, so it
// is safe to call from the request path regardless of network state. Delivery
// runs asynchronously: a periodic timer drains the queue into batches, and
// reaching the batch size kicks an immediate flush without blocking the
// capturing caller.
//
//	c, err := client.New(client.Config{
//		APIKey:      os.Getenv("APILENS_API_KEY"),
//		Environment: "production",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Shutdown(true)
//
//	c.Capture(record.Input{Method: "GET", Path: "/users", StatusCode: 200})
//
// # Delivery policy
//
// Delivery is best-effort, at-most-once. A batch removed from the queue is
// either acknowledged by the ingest endpoint or dropped after the configured
// retries; it is never re-enqueued, so memory stays bounded under sustained
// endpoint failure. Backpressure evicts the oldest queued record and
// increments the counter exposed by Dropped.
//
// # Shared instance
//
// Applications that want one process-wide client register it explicitly with
// SetDefault and retrieve it with Default. New itself never touches the
// registry, so tests construct fresh instances freely.
package client
