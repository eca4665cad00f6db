package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Event ingestion metrics
	EventsRecordedTotal *prometheus.CounterVec

	// Aggregation metrics
	AggregationRunsTotal  *prometheus.CounterVec
	AggregationDuration   prometheus.Histogram
	WindowsComputedTotal  prometheus.Counter
	WindowsSkippedTotal   prometheus.Counter
	EventsAggregatedTotal prometheus.Counter
	MalformedEventsTotal  prometheus.Counter

	// Alerting metrics
	AlertsFiredTotal      *prometheus.CounterVec
	AlertsSuppressedTotal *prometheus.CounterVec
	NotificationsTotal    *prometheus.CounterVec

	// Retention metrics
	RetentionRunsTotal    *prometheus.CounterVec
	RetentionDeletedTotal *prometheus.CounterVec

	// Query service metrics
	SummaryQueriesTotal *prometheus.CounterVec
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipewatch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipewatch_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		EventsRecordedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipewatch_events_recorded_total",
				Help: "Total number of raw pipeline events recorded",
			},
			[]string{"type"},
		),

		AggregationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipewatch_aggregation_runs_total",
				Help: "Total number of window aggregation runs",
			},
			[]string{"status"},
		),
		AggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pipewatch_aggregation_duration_seconds",
				Help:    "Window aggregation run duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		WindowsComputedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipewatch_windows_computed_total",
				Help: "Total number of metric windows written",
			},
		),
		WindowsSkippedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipewatch_windows_skipped_total",
				Help: "Total number of aggregation runs skipped because the window already existed",
			},
		),
		EventsAggregatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipewatch_events_aggregated_total",
				Help: "Total number of raw events folded into metric windows",
			},
		),
		MalformedEventsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipewatch_malformed_events_total",
				Help: "Total number of raw events skipped during aggregation",
			},
		),

		AlertsFiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipewatch_alerts_fired_total",
				Help: "Total number of alerts fired",
			},
			[]string{"rule", "severity"},
		),
		AlertsSuppressedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipewatch_alerts_suppressed_total",
				Help: "Total number of alerts suppressed by cooldown",
			},
			[]string{"rule"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipewatch_notifications_total",
				Help: "Total number of notification records created",
			},
			[]string{"status"},
		),

		RetentionRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipewatch_retention_runs_total",
				Help: "Total number of retention runs",
			},
			[]string{"status"},
		),
		RetentionDeletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipewatch_retention_deleted_total",
				Help: "Total number of records deleted by retention, per collection",
			},
			[]string{"collection"},
		),

		SummaryQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipewatch_summary_queries_total",
				Help: "Total number of analytics summary queries",
			},
			[]string{"time_range"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipewatch_summary_cache_hits_total",
				Help: "Total number of summary cache hits",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipewatch_summary_cache_misses_total",
				Help: "Total number of summary cache misses",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.EventsRecordedTotal,
		m.AggregationRunsTotal,
		m.AggregationDuration,
		m.WindowsComputedTotal,
		m.WindowsSkippedTotal,
		m.EventsAggregatedTotal,
		m.MalformedEventsTotal,
		m.AlertsFiredTotal,
		m.AlertsSuppressedTotal,
		m.NotificationsTotal,
		m.RetentionRunsTotal,
		m.RetentionDeletedTotal,
		m.SummaryQueriesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHTTP wraps a handler with request count and duration metrics
func (m *Metrics) InstrumentHTTP(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
