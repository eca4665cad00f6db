package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/fitsnap/pipewatch/pkg/observability"
)

// Aggregator rolls raw events up into fixed-size metric windows. It runs on
// a fixed cadence; each run covers the trailing window ending at the current
// tick. The scheduler guarantees at-least-once invocation, so the write is
// guarded by a check-then-insert keyed by windowStart.
type Aggregator struct {
	extractions ExtractionEventStore
	usage       APIUsageEventStore
	windows     WindowStore
	windowSize  time.Duration
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewAggregator creates a new window aggregator
func NewAggregator(extractions ExtractionEventStore, usage APIUsageEventStore, windows WindowStore, windowSize time.Duration, logger *observability.Logger, metrics *observability.Metrics) *Aggregator {
	return &Aggregator{
		extractions: extractions,
		usage:       usage,
		windows:     windows,
		windowSize:  windowSize,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run computes and persists the window ending at now. The boundaries are
// aligned to the window size so a duplicate invocation within the same tick
// resolves to the same windowStart and is skipped. Returns the window and
// whether a new record was written.
//
// A failed read aborts the run without writing a partial window; the gap is
// permanent in the rollup ledger and only logged. Raw events stay available
// until retention expiry.
func (a *Aggregator) Run(ctx context.Context, now time.Time) (*MetricWindow, bool, error) {
	windowEnd := now.UTC().Truncate(a.windowSize)
	windowStart := windowEnd.Add(-a.windowSize)

	started := time.Now()
	log := a.logger.WithFields(map[string]interface{}{
		"window_start": windowStart.Format(time.RFC3339),
		"window_end":   windowEnd.Format(time.RFC3339),
	})

	exists, err := a.windows.WindowExists(ctx, windowStart)
	if err != nil {
		a.countRun("error")
		return nil, false, fmt.Errorf("failed to check window existence: %w", err)
	}
	if exists {
		log.Info("window already aggregated, skipping")
		a.countRun("skipped")
		if a.metrics != nil {
			a.metrics.WindowsSkippedTotal.Inc()
		}
		return nil, false, nil
	}

	events, err := a.extractions.ListExtractionEvents(ctx, windowStart, windowEnd)
	if err != nil {
		a.countRun("error")
		return nil, false, fmt.Errorf("failed to read extraction events: %w", err)
	}
	usage, err := a.usage.ListAPIUsageEvents(ctx, windowStart, windowEnd)
	if err != nil {
		a.countRun("error")
		return nil, false, fmt.Errorf("failed to read api usage events: %w", err)
	}

	window, skipped := ComputeWindow(events, usage, windowStart, windowEnd)
	if skipped > 0 {
		log.WithField("skipped", skipped).Debug("skipped malformed extraction events")
		if a.metrics != nil {
			a.metrics.MalformedEventsTotal.Add(float64(skipped))
		}
	}

	if err := a.windows.InsertWindow(ctx, window); err != nil {
		a.countRun("error")
		return nil, false, fmt.Errorf("failed to write metric window: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"total_extractions": window.TotalExtractions,
		"success_rate_pct":  window.SuccessRatePct,
		"api_requests":      window.APIUsage.RequestCount,
	}).Info("metric window computed")

	a.countRun("ok")
	if a.metrics != nil {
		a.metrics.WindowsComputedTotal.Inc()
		a.metrics.EventsAggregatedTotal.Add(float64(window.TotalExtractions))
		a.metrics.AggregationDuration.Observe(time.Since(started).Seconds())
	}
	return &window, true, nil
}

func (a *Aggregator) countRun(status string) {
	if a.metrics != nil {
		a.metrics.AggregationRunsTotal.WithLabelValues(status).Inc()
	}
}

// ComputeWindow folds raw events into one metric window. Events with an
// unrecognized outcome or missing category are skipped rather than aborting
// the whole computation; the count of skipped events is returned. An empty
// window yields a 0% success rate, never a division error.
func ComputeWindow(events []RawExtractionEvent, usage []RawAPIUsageEvent, windowStart, windowEnd time.Time) (MetricWindow, int) {
	w := MetricWindow{
		WindowStart:      windowStart,
		WindowEnd:        windowEnd,
		CountsByCategory: make(map[Category]int64),
		ErrorBreakdown:   make(map[string]int64),
	}

	var skipped int
	var processingTotal int64
	var processingSamples int64

	for _, ev := range events {
		if (ev.Outcome != OutcomeSuccess && ev.Outcome != OutcomeFailure) || ev.Category == "" {
			skipped++
			continue
		}

		w.TotalExtractions++
		w.CountsByCategory[ev.Category]++

		if ev.Outcome == OutcomeSuccess {
			w.SuccessCount++
		} else {
			kind := ev.ErrorKind
			if kind == "" {
				kind = ErrorKindUnknown
			}
			w.ErrorBreakdown[kind]++
		}

		if ev.ProcessingTimeMs != nil {
			processingTotal += *ev.ProcessingTimeMs
			processingSamples++
		}
	}

	w.FailureCount = w.TotalExtractions - w.SuccessCount
	if w.TotalExtractions > 0 {
		w.SuccessRatePct = roundPct(float64(w.SuccessCount) / float64(w.TotalExtractions) * 100)
	}
	if processingSamples > 0 {
		w.AvgProcessingTimeMs = processingTotal / processingSamples
	}

	var totalTokens int64
	var totalCost float64
	for _, u := range usage {
		w.APIUsage.RequestCount++
		totalTokens += u.TokensUsed
		totalCost += u.EstimatedCost
	}
	w.APIUsage.TotalTokens = totalTokens
	w.APIUsage.EstimatedCost = roundCents(totalCost)
	if w.APIUsage.RequestCount > 0 {
		w.APIUsage.AvgTokensPerRequest = totalTokens / w.APIUsage.RequestCount
	}

	return w, skipped
}

// roundPct rounds a percentage to two decimal places
func roundPct(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundCents rounds a dollar amount to two decimal places
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
