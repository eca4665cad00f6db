package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/fitsnap/pipewatch/pkg/observability"
)

// EventRecorder appends raw pipeline events to the store. It is called
// synchronously by the extraction pipeline on every attempt and on every
// inference-service call.
type EventRecorder struct {
	extractions ExtractionEventStore
	usage       APIUsageEventStore
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewEventRecorder creates a new event recorder
func NewEventRecorder(extractions ExtractionEventStore, usage APIUsageEventStore, logger *observability.Logger, metrics *observability.Metrics) *EventRecorder {
	return &EventRecorder{
		extractions: extractions,
		usage:       usage,
		logger:      logger,
		metrics:     metrics,
	}
}

// RecordExtraction appends one extraction attempt. A zero timestamp is
// stamped with the current time.
func (r *EventRecorder) RecordExtraction(ctx context.Context, ev RawExtractionEvent) error {
	if ev.CertificationID == "" {
		return fmt.Errorf("extraction event missing certification id")
	}
	if ev.Outcome != OutcomeSuccess && ev.Outcome != OutcomeFailure {
		return fmt.Errorf("extraction event has invalid outcome %q", ev.Outcome)
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if err := r.extractions.InsertExtractionEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to record extraction event: %w", err)
	}
	if r.metrics != nil {
		r.metrics.EventsRecordedTotal.WithLabelValues("extraction").Inc()
	}
	return nil
}

// RecordAPIUsage appends one inference-service call record.
func (r *EventRecorder) RecordAPIUsage(ctx context.Context, ev RawAPIUsageEvent) error {
	if ev.CertificationID == "" {
		return fmt.Errorf("api usage event missing certification id")
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	if err := r.usage.InsertAPIUsageEvent(ctx, ev); err != nil {
		return fmt.Errorf("failed to record api usage event: %w", err)
	}
	if r.metrics != nil {
		r.metrics.EventsRecordedTotal.WithLabelValues("api_usage").Inc()
	}
	return nil
}
