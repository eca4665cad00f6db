package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/fitsnap/pipewatch/pkg/observability"
)

// Time ranges accepted by the query service. Anything else silently falls
// back to the default rather than failing the dashboard.
const (
	TimeRange1h  = "1h"
	TimeRange6h  = "6h"
	TimeRange24h = "24h"
	TimeRange7d  = "7d"

	defaultTimeRange = TimeRange24h
)

// QueryService serves read-only aggregate queries over the rollup ledger
// for dashboards. Totals are computed by summing per-window fields, never by
// re-reading raw events.
type QueryService struct {
	windows WindowStore
	alerts  AlertStore
	cache   *SummaryCache
	logger  *observability.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewQueryService creates a new analytics query service. cache may be nil
// when no Redis instance is configured.
func NewQueryService(windows WindowStore, alerts AlertStore, cache *SummaryCache, logger *observability.Logger, metrics *observability.Metrics) *QueryService {
	return &QueryService{
		windows: windows,
		alerts:  alerts,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Period is the resolved query interval.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ExtractionSummary holds cross-window extraction totals.
type ExtractionSummary struct {
	TotalExtractions      int64   `json:"totalExtractions"`
	SuccessfulExtractions int64   `json:"successfulExtractions"`
	FailedExtractions     int64   `json:"failedExtractions"`
	SuccessRate           float64 `json:"successRate"`
	ExerciseExtractions   int64   `json:"exerciseExtractions"`
	DietExtractions       int64   `json:"dietExtractions"`
}

// APIUsageSummary holds cross-window inference-service totals.
type APIUsageSummary struct {
	TotalRequests           int64   `json:"totalRequests"`
	TotalTokensUsed         int64   `json:"totalTokensUsed"`
	AverageTokensPerRequest int64   `json:"averageTokensPerRequest"`
	EstimatedCost           float64 `json:"estimatedCost"`
}

// ErrorSummary buckets failures by kind across the queried windows.
type ErrorSummary struct {
	ImageProcessingErrors int64 `json:"imageProcessingErrors"`
	AIServiceErrors       int64 `json:"aiServiceErrors"`
	ParsingErrors         int64 `json:"parsingErrors"`
	UnknownErrors         int64 `json:"unknownErrors"`
}

// PerformanceSummary holds cross-window timing figures.
type PerformanceSummary struct {
	AverageProcessingTime int64 `json:"averageProcessingTime"`
}

// AlertSummary counts alerts in the queried range by severity and carries
// the most recent ones.
type AlertSummary struct {
	Total    int64         `json:"total"`
	Critical int64         `json:"critical"`
	High     int64         `json:"high"`
	Medium   int64         `json:"medium"`
	Low      int64         `json:"low"`
	Recent   []AlertRecord `json:"recent"`
}

// Summary is the full dashboard payload for one time range.
type Summary struct {
	TimeRange      string             `json:"timeRange"`
	Period         Period             `json:"period"`
	Summary        ExtractionSummary  `json:"summary"`
	APIUsage       APIUsageSummary    `json:"apiUsage"`
	ErrorBreakdown ErrorSummary       `json:"errorBreakdown"`
	Performance    PerformanceSummary `json:"performance"`
	Alerts         AlertSummary       `json:"alerts"`
	TimeSeries     []MetricWindow     `json:"timeSeries"`
}

// recentAlertLimit caps the alerts embedded in a summary response.
const recentAlertLimit = 10

// Query computes the summary for the given time range. An unrecognized
// range defaults to 24h.
func (s *QueryService) Query(ctx context.Context, timeRange string) (*Summary, error) {
	timeRange, duration := resolveTimeRange(timeRange)
	if s.metrics != nil {
		s.metrics.SummaryQueriesTotal.WithLabelValues(timeRange).Inc()
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, timeRange); ok {
			if s.metrics != nil {
				s.metrics.CacheHitsTotal.Inc()
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMissesTotal.Inc()
		}
	}

	end := s.now().UTC()
	start := end.Add(-duration)

	windows, err := s.windows.ListWindowsSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to read metric windows: %w", err)
	}
	recent, err := s.alerts.ListRecentAlerts(ctx, start, recentAlertLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read recent alerts: %w", err)
	}
	severities, err := s.alerts.CountAlertsBySeverity(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	summary := buildSummary(timeRange, start, end, windows, recent, severities)

	if s.cache != nil {
		s.cache.Set(ctx, timeRange, summary)
	}
	return summary, nil
}

// resolveTimeRange maps a query value onto a supported range, defaulting to
// 24h, and returns the normalized label with its duration.
func resolveTimeRange(timeRange string) (string, time.Duration) {
	switch timeRange {
	case TimeRange1h:
		return TimeRange1h, time.Hour
	case TimeRange6h:
		return TimeRange6h, 6 * time.Hour
	case TimeRange24h:
		return TimeRange24h, 24 * time.Hour
	case TimeRange7d:
		return TimeRange7d, 7 * 24 * time.Hour
	default:
		return defaultTimeRange, 24 * time.Hour
	}
}

// buildSummary sums per-window fields into the dashboard payload. windows
// arrive newest first; the time series is returned chronological.
func buildSummary(timeRange string, start, end time.Time, windows []MetricWindow, recent []AlertRecord, severities map[Severity]int64) *Summary {
	out := &Summary{
		TimeRange: timeRange,
		Period:    Period{Start: start, End: end},
	}

	var processingWeighted int64
	var processingTotal int64
	for _, w := range windows {
		out.Summary.TotalExtractions += w.TotalExtractions
		out.Summary.SuccessfulExtractions += w.SuccessCount
		out.Summary.FailedExtractions += w.FailureCount
		out.Summary.ExerciseExtractions += w.CountsByCategory[CategoryExercise]
		out.Summary.DietExtractions += w.CountsByCategory[CategoryDiet]

		out.APIUsage.TotalRequests += w.APIUsage.RequestCount
		out.APIUsage.TotalTokensUsed += w.APIUsage.TotalTokens
		out.APIUsage.EstimatedCost += w.APIUsage.EstimatedCost

		// Kinds outside the fixed buckets count as unknown so no failure
		// disappears from the breakdown.
		for kind, count := range w.ErrorBreakdown {
			switch kind {
			case ErrorKindImageProcessing:
				out.ErrorBreakdown.ImageProcessingErrors += count
			case ErrorKindAIService:
				out.ErrorBreakdown.AIServiceErrors += count
			case ErrorKindParsing:
				out.ErrorBreakdown.ParsingErrors += count
			default:
				out.ErrorBreakdown.UnknownErrors += count
			}
		}

		processingWeighted += w.AvgProcessingTimeMs * w.TotalExtractions
		processingTotal += w.TotalExtractions
	}

	if out.Summary.TotalExtractions > 0 {
		out.Summary.SuccessRate = roundPct(float64(out.Summary.SuccessfulExtractions) / float64(out.Summary.TotalExtractions) * 100)
	}
	if out.APIUsage.TotalRequests > 0 {
		out.APIUsage.AverageTokensPerRequest = out.APIUsage.TotalTokensUsed / out.APIUsage.TotalRequests
	}
	out.APIUsage.EstimatedCost = roundCents(out.APIUsage.EstimatedCost)
	if processingTotal > 0 {
		out.Performance.AverageProcessingTime = processingWeighted / processingTotal
	}

	out.Alerts.Critical = severities[SeverityCritical]
	out.Alerts.High = severities[SeverityHigh]
	out.Alerts.Medium = severities[SeverityMedium]
	out.Alerts.Low = severities[SeverityLow]
	out.Alerts.Total = out.Alerts.Critical + out.Alerts.High + out.Alerts.Medium + out.Alerts.Low
	out.Alerts.Recent = recent
	if out.Alerts.Recent == nil {
		out.Alerts.Recent = []AlertRecord{}
	}

	// Reverse the descending read for time-series rendering.
	out.TimeSeries = make([]MetricWindow, len(windows))
	for i, w := range windows {
		out.TimeSeries[len(windows)-1-i] = w
	}

	return out
}
