// Package telemetry groups the observability support for the lens SDK.
//
// # Components
//
//   - logging: structured log/slog setup
//   - metrics: Prometheus instrumentation for the capture client
//   - tracing: an OpenTelemetry span exporter that turns server spans
//     into lens records
//
// Each subpackage is optional. The client works with all of them left
// unconfigured.
package telemetry
