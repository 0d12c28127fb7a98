// Package metrics provides Prometheus self-metrics for the capture client.
//
// # Overview
//
// The SDK never requires Prometheus at runtime: a nil *ClientMetrics disables
// all recording, so the zero client configuration pays nothing. Applications
// that already run a Prometheus registry opt in:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	c, err := client.New(client.Config{APIKey: key, Metrics: m})
//
//	http.Handle("/metrics", metrics.Handler(reg))
//
// # Exposed series
//
//   - lens_client_records_captured_total
//   - lens_client_records_dropped_total   (queue overflow evictions)
//   - lens_client_records_sent_total
//   - lens_client_batches_sent_total
//   - lens_client_batches_dropped_total   (retry exhaustion)
//   - lens_client_send_duration_seconds
//   - lens_client_queue_depth
package metrics
