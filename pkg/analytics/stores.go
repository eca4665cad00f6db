package analytics

import (
	"context"
	"time"
)

// Store interfaces consumed by the engine components. The SQL-backed
// implementation lives in pkg/store; tests substitute in-memory fakes.

// ExtractionEventStore persists raw extraction events.
type ExtractionEventStore interface {
	InsertExtractionEvent(ctx context.Context, ev RawExtractionEvent) error
	// ListExtractionEvents returns events with timestamp in [from, to).
	ListExtractionEvents(ctx context.Context, from, to time.Time) ([]RawExtractionEvent, error)
	DeleteExtractionEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// APIUsageEventStore persists raw inference-service usage events.
type APIUsageEventStore interface {
	InsertAPIUsageEvent(ctx context.Context, ev RawAPIUsageEvent) error
	// ListAPIUsageEvents returns events with timestamp in [from, to).
	ListAPIUsageEvents(ctx context.Context, from, to time.Time) ([]RawAPIUsageEvent, error)
	DeleteAPIUsageEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WindowStore persists the append-only ledger of metric windows.
type WindowStore interface {
	WindowExists(ctx context.Context, windowStart time.Time) (bool, error)
	InsertWindow(ctx context.Context, w MetricWindow) error
	// ListWindowsSince returns windows with windowStart >= since, newest first.
	ListWindowsSince(ctx context.Context, since time.Time) ([]MetricWindow, error)
	DeleteWindowsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AlertStore persists fired alerts and answers cooldown lookbacks.
type AlertStore interface {
	InsertAlert(ctx context.Context, a AlertRecord) error
	// CountAlertsSince counts alerts for a rule with triggeredAt >= since.
	CountAlertsSince(ctx context.Context, ruleName string, since time.Time) (int64, error)
	// ListRecentAlerts returns alerts with triggeredAt >= since, newest first.
	ListRecentAlerts(ctx context.Context, since time.Time, limit int) ([]AlertRecord, error)
	// CountAlertsBySeverity buckets alerts with triggeredAt >= since by severity.
	CountAlertsBySeverity(ctx context.Context, since time.Time) (map[Severity]int64, error)
}

// NotificationStore persists dispatch records for downstream delivery.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n NotificationRecord) error
}
