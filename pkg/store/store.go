package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitsnap/pipewatch/pkg/analytics"
)

// Store is the SQL-backed document store client. One instance is constructed
// at process start and handed to each component; it is safe for concurrent
// use. Postgres-style $n placeholders are used throughout, which both lib/pq
// and go-sqlite3 accept.
type Store struct {
	db *sql.DB
}

// Open connects to the configured backend ("postgres" or "sqlite3") and
// verifies the connection.
func Open(driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s store: %w", driver, err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing database handle
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for health checks
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying handle
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the collections and their range-query indexes if they
// do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS raw_extraction_events (
			certification_id TEXT NOT NULL,
			category TEXT NOT NULL,
			outcome TEXT NOT NULL,
			error_kind TEXT,
			processing_time_ms BIGINT,
			ts TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_extraction_events_ts ON raw_extraction_events (ts)`,
		`CREATE TABLE IF NOT EXISTS raw_api_usage_events (
			certification_id TEXT NOT NULL,
			request_kind TEXT NOT NULL,
			tokens_used BIGINT NOT NULL,
			response_time_ms BIGINT NOT NULL,
			estimated_cost DOUBLE PRECISION NOT NULL,
			ts TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_raw_api_usage_events_ts ON raw_api_usage_events (ts)`,
		`CREATE TABLE IF NOT EXISTS metric_windows (
			window_start TIMESTAMP PRIMARY KEY,
			window_end TIMESTAMP NOT NULL,
			total_extractions BIGINT NOT NULL,
			success_count BIGINT NOT NULL,
			failure_count BIGINT NOT NULL,
			success_rate_pct DOUBLE PRECISION NOT NULL,
			avg_processing_time_ms BIGINT NOT NULL,
			counts_by_category TEXT NOT NULL,
			api_request_count BIGINT NOT NULL,
			api_total_tokens BIGINT NOT NULL,
			api_avg_tokens BIGINT NOT NULL,
			api_estimated_cost DOUBLE PRECISION NOT NULL,
			error_breakdown TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			rule_name TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			triggered_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL,
			window_snapshot TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_rule_triggered ON alerts (rule_name, triggered_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_triggered ON alerts (triggered_at)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			alert_rule_name TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			window_snapshot TEXT NOT NULL,
			sent BOOLEAN NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// InsertExtractionEvent appends one raw extraction event
func (s *Store) InsertExtractionEvent(ctx context.Context, ev analytics.RawExtractionEvent) error {
	query := `
		INSERT INTO raw_extraction_events (
			certification_id, category, outcome, error_kind, processing_time_ms, ts
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	var processingTime interface{}
	if ev.ProcessingTimeMs != nil {
		processingTime = *ev.ProcessingTimeMs
	}
	_, err := s.db.ExecContext(ctx, query,
		ev.CertificationID, string(ev.Category), string(ev.Outcome),
		nullString(ev.ErrorKind), processingTime, ev.Timestamp.UTC(),
	)
	return err
}

// ListExtractionEvents returns events with ts in [from, to), oldest first
func (s *Store) ListExtractionEvents(ctx context.Context, from, to time.Time) ([]analytics.RawExtractionEvent, error) {
	query := `
		SELECT certification_id, category, outcome, error_kind, processing_time_ms, ts
		FROM raw_extraction_events
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts ASC
	`
	rows, err := s.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query extraction events: %w", err)
	}
	defer rows.Close()

	var events []analytics.RawExtractionEvent
	for rows.Next() {
		var ev analytics.RawExtractionEvent
		var errorKind sql.NullString
		var processingTime sql.NullInt64
		if err := rows.Scan(&ev.CertificationID, &ev.Category, &ev.Outcome, &errorKind, &processingTime, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan extraction event: %w", err)
		}
		if errorKind.Valid {
			ev.ErrorKind = errorKind.String
		}
		if processingTime.Valid {
			v := processingTime.Int64
			ev.ProcessingTimeMs = &v
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteExtractionEventsBefore bulk-deletes events older than cutoff
func (s *Store) DeleteExtractionEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM raw_extraction_events WHERE ts < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete extraction events: %w", err)
	}
	return res.RowsAffected()
}

// InsertAPIUsageEvent appends one raw inference-service usage event
func (s *Store) InsertAPIUsageEvent(ctx context.Context, ev analytics.RawAPIUsageEvent) error {
	query := `
		INSERT INTO raw_api_usage_events (
			certification_id, request_kind, tokens_used, response_time_ms, estimated_cost, ts
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		ev.CertificationID, ev.RequestKind, ev.TokensUsed,
		ev.ResponseTimeMs, ev.EstimatedCost, ev.Timestamp.UTC(),
	)
	return err
}

// ListAPIUsageEvents returns events with ts in [from, to), oldest first
func (s *Store) ListAPIUsageEvents(ctx context.Context, from, to time.Time) ([]analytics.RawAPIUsageEvent, error) {
	query := `
		SELECT certification_id, request_kind, tokens_used, response_time_ms, estimated_cost, ts
		FROM raw_api_usage_events
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts ASC
	`
	rows, err := s.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query api usage events: %w", err)
	}
	defer rows.Close()

	var events []analytics.RawAPIUsageEvent
	for rows.Next() {
		var ev analytics.RawAPIUsageEvent
		if err := rows.Scan(&ev.CertificationID, &ev.RequestKind, &ev.TokensUsed, &ev.ResponseTimeMs, &ev.EstimatedCost, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan api usage event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// DeleteAPIUsageEventsBefore bulk-deletes events older than cutoff
func (s *Store) DeleteAPIUsageEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM raw_api_usage_events WHERE ts < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete api usage events: %w", err)
	}
	return res.RowsAffected()
}

// WindowExists reports whether a window with the given natural key exists
func (s *Store) WindowExists(ctx context.Context, windowStart time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM metric_windows WHERE window_start = $1`, windowStart.UTC(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check window existence: %w", err)
	}
	return true, nil
}

// InsertWindow appends one metric window to the rollup ledger
func (s *Store) InsertWindow(ctx context.Context, w analytics.MetricWindow) error {
	categories, err := json.Marshal(w.CountsByCategory)
	if err != nil {
		return fmt.Errorf("failed to encode category counts: %w", err)
	}
	breakdown, err := json.Marshal(w.ErrorBreakdown)
	if err != nil {
		return fmt.Errorf("failed to encode error breakdown: %w", err)
	}

	query := `
		INSERT INTO metric_windows (
			window_start, window_end,
			total_extractions, success_count, failure_count, success_rate_pct,
			avg_processing_time_ms, counts_by_category,
			api_request_count, api_total_tokens, api_avg_tokens, api_estimated_cost,
			error_breakdown
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.db.ExecContext(ctx, query,
		w.WindowStart.UTC(), w.WindowEnd.UTC(),
		w.TotalExtractions, w.SuccessCount, w.FailureCount, w.SuccessRatePct,
		w.AvgProcessingTimeMs, string(categories),
		w.APIUsage.RequestCount, w.APIUsage.TotalTokens, w.APIUsage.AvgTokensPerRequest, w.APIUsage.EstimatedCost,
		string(breakdown),
	)
	return err
}

// ListWindowsSince returns windows with window_start >= since, newest first
func (s *Store) ListWindowsSince(ctx context.Context, since time.Time) ([]analytics.MetricWindow, error) {
	query := `
		SELECT window_start, window_end,
			total_extractions, success_count, failure_count, success_rate_pct,
			avg_processing_time_ms, counts_by_category,
			api_request_count, api_total_tokens, api_avg_tokens, api_estimated_cost,
			error_breakdown
		FROM metric_windows
		WHERE window_start >= $1
		ORDER BY window_start DESC
	`
	rows, err := s.db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query metric windows: %w", err)
	}
	defer rows.Close()

	var windows []analytics.MetricWindow
	for rows.Next() {
		var w analytics.MetricWindow
		var categories, breakdown string
		if err := rows.Scan(
			&w.WindowStart, &w.WindowEnd,
			&w.TotalExtractions, &w.SuccessCount, &w.FailureCount, &w.SuccessRatePct,
			&w.AvgProcessingTimeMs, &categories,
			&w.APIUsage.RequestCount, &w.APIUsage.TotalTokens, &w.APIUsage.AvgTokensPerRequest, &w.APIUsage.EstimatedCost,
			&breakdown,
		); err != nil {
			return nil, fmt.Errorf("failed to scan metric window: %w", err)
		}
		if err := json.Unmarshal([]byte(categories), &w.CountsByCategory); err != nil {
			return nil, fmt.Errorf("failed to decode category counts: %w", err)
		}
		if err := json.Unmarshal([]byte(breakdown), &w.ErrorBreakdown); err != nil {
			return nil, fmt.Errorf("failed to decode error breakdown: %w", err)
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

// DeleteWindowsBefore bulk-deletes windows older than cutoff
func (s *Store) DeleteWindowsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM metric_windows WHERE window_start < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete metric windows: %w", err)
	}
	return res.RowsAffected()
}

// InsertAlert appends one fired alert
func (s *Store) InsertAlert(ctx context.Context, a analytics.AlertRecord) error {
	snapshot, err := json.Marshal(a.Window)
	if err != nil {
		return fmt.Errorf("failed to encode window snapshot: %w", err)
	}

	query := `
		INSERT INTO alerts (id, rule_name, severity, message, triggered_at, status, window_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		a.ID, a.RuleName, string(a.Severity), a.Message, a.TriggeredAt.UTC(), a.Status, string(snapshot),
	)
	return err
}

// CountAlertsSince counts alerts for one rule with triggered_at >= since
func (s *Store) CountAlertsSince(ctx context.Context, ruleName string, since time.Time) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE rule_name = $1 AND triggered_at >= $2`,
		ruleName, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// ListRecentAlerts returns alerts with triggered_at >= since, newest first
func (s *Store) ListRecentAlerts(ctx context.Context, since time.Time, limit int) ([]analytics.AlertRecord, error) {
	query := `
		SELECT id, rule_name, severity, message, triggered_at, status, window_snapshot
		FROM alerts
		WHERE triggered_at >= $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []analytics.AlertRecord
	for rows.Next() {
		var a analytics.AlertRecord
		var snapshot string
		if err := rows.Scan(&a.ID, &a.RuleName, &a.Severity, &a.Message, &a.TriggeredAt, &a.Status, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &a.Window); err != nil {
			return nil, fmt.Errorf("failed to decode window snapshot: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// CountAlertsBySeverity buckets alerts with triggered_at >= since by severity
func (s *Store) CountAlertsBySeverity(ctx context.Context, since time.Time) (map[analytics.Severity]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT severity, COUNT(*) FROM alerts WHERE triggered_at >= $1 GROUP BY severity`,
		since.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count alerts by severity: %w", err)
	}
	defer rows.Close()

	counts := make(map[analytics.Severity]int64)
	for rows.Next() {
		var severity string
		var count int64
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, fmt.Errorf("failed to scan severity count: %w", err)
		}
		counts[analytics.Severity(severity)] = count
	}
	return counts, rows.Err()
}

// InsertNotification appends one dispatch record
func (s *Store) InsertNotification(ctx context.Context, n analytics.NotificationRecord) error {
	snapshot, err := json.Marshal(n.Window)
	if err != nil {
		return fmt.Errorf("failed to encode window snapshot: %w", err)
	}

	query := `
		INSERT INTO notifications (id, alert_rule_name, severity, message, created_at, window_snapshot, sent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		n.ID, n.AlertRuleName, string(n.Severity), n.Message, n.CreatedAt.UTC(), string(snapshot), n.Sent,
	)
	return err
}

// nullString converts empty strings to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
