// Package tracing bridges OpenTelemetry spans into lens records. The
// exporter watches finished server-side spans and converts their HTTP
// semantic attributes into capture inputs, so services that are
// already traced get API observability without a second middleware.
package tracing
