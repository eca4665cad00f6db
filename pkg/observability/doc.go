// Package observability provides structured logging, Prometheus metrics, and
// health check endpoints for the pipewatch services.
//
// # Logging
//
// Logger wraps slog with a JSON handler and a small fluent API:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("rule", "high_failure_rate").Info("alert fired")
//
// # Metrics
//
// NewMetrics registers counters and histograms for event ingestion, window
// aggregation, alerting, retention, and the HTTP read API on a caller-owned
// prometheus.Registry. Handler exposes the registry for scraping.
//
// # Health
//
// HealthChecker serves liveness and readiness probes. Readiness pings the
// document store and, when configured, the Redis summary cache.
package observability
