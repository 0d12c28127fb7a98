// Package record defines the canonical telemetry record produced for every
// observed HTTP request, along with the pure normalization rules that turn a
// loose capture input into a complete record.
//
// # Overview
//
// A Record is one normalized observation of a single request/response pair.
// Records are immutable once built: normalization runs exactly once, at
// capture time, and nothing mutates a record afterwards.
//
// Normalization is total. Every field has a non-failing default:
//
//   - zero timestamp        -> current time (UTC)
//   - empty method          -> "GET" (methods are always upper-cased)
//   - blank path            -> "/" (paths always begin with "/", query
//     strings are stripped)
//   - negative sizes/status -> 0
//   - empty environment     -> the configured default, else "production"
//
// # Wire format
//
// Records marshal to the JSON shape the ingest endpoint expects, with the
// timestamp rendered as RFC 3339 UTC ("2024-01-02T15:04:05Z"). See
// Record.MarshalJSON.
package record
