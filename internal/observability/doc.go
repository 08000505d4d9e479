// Package observability provides structured logging and metrics for the
// gateway.
//
// This package implements:
//   - Structured logging with request ID propagation (zap-based)
//   - OpenTelemetry metric instruments for credential verdicts
//
// Metrics are exported over OTLP/HTTP when a collector endpoint is
// configured and are no-ops otherwise.
package observability
