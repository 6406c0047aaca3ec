// Package observability provides structured logging and Prometheus metrics
// for the developer portal API.
//
// This package implements:
//   - zap logger construction from LOG_LEVEL / LOG_FORMAT
//   - HTTP request counters and latency histograms
//   - JWKS cache gauges read from the live key set cache
//   - A standalone metrics listener serving /metrics and /healthz
package observability
