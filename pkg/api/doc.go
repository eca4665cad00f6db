// Package api exposes the pipeline metrics engine over HTTP.
//
// Endpoints:
//
//	GET  /analytics?timeRange={1h|6h|24h|7d}  dashboard summary
//	POST /events/extraction                   record one extraction attempt
//	POST /events/api-usage                    record one inference-service call
//	GET  /healthz, /readyz                    probes
//	GET  /metrics                             Prometheus scrape target
//
// Every API response uses the {success, data, timestamp} envelope. An
// unrecognized timeRange is answered with the 24h summary, never an error.
package api
