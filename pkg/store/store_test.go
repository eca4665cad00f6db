package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/fitsnap/pipewatch/pkg/analytics"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet expectations: %v", err)
	}
}

func TestInsertExtractionEvent(t *testing.T) {
	s, mock := newMockStore(t)
	ts := time.Date(2026, 1, 15, 12, 1, 0, 0, time.UTC)
	processing := int64(1500)

	mock.ExpectExec("INSERT INTO raw_extraction_events").
		WithArgs("cert-1", "exercise", "success", nil, processing, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.InsertExtractionEvent(context.Background(), analytics.RawExtractionEvent{
		CertificationID:  "cert-1",
		Category:         analytics.CategoryExercise,
		Outcome:          analytics.OutcomeSuccess,
		ProcessingTimeMs: &processing,
		Timestamp:        ts,
	})
	if err != nil {
		t.Fatalf("InsertExtractionEvent failed: %v", err)
	}
	expectationsMet(t, mock)
}

func TestInsertExtractionEventNullableFields(t *testing.T) {
	s, mock := newMockStore(t)
	ts := time.Date(2026, 1, 15, 12, 1, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO raw_extraction_events").
		WithArgs("cert-1", "diet", "failure", "parsing", nil, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.InsertExtractionEvent(context.Background(), analytics.RawExtractionEvent{
		CertificationID: "cert-1",
		Category:        analytics.CategoryDiet,
		Outcome:         analytics.OutcomeFailure,
		ErrorKind:       analytics.ErrorKindParsing,
		Timestamp:       ts,
	})
	if err != nil {
		t.Fatalf("InsertExtractionEvent failed: %v", err)
	}
	expectationsMet(t, mock)
}

func TestListExtractionEvents(t *testing.T) {
	s, mock := newMockStore(t)
	from := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	to := from.Add(5 * time.Minute)

	rows := sqlmock.NewRows([]string{"certification_id", "category", "outcome", "error_kind", "processing_time_ms", "ts"}).
		AddRow("cert-1", "exercise", "success", nil, int64(1200), from.Add(time.Minute)).
		AddRow("cert-2", "diet", "failure", "ai_service", nil, from.Add(2*time.Minute))

	mock.ExpectQuery("SELECT certification_id, category, outcome, error_kind, processing_time_ms, ts").
		WithArgs(from, to).
		WillReturnRows(rows)

	events, err := s.ListExtractionEvents(context.Background(), from, to)
	if err != nil {
		t.Fatalf("ListExtractionEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(events))
	}
	if events[0].ProcessingTimeMs == nil || *events[0].ProcessingTimeMs != 1200 {
		t.Errorf("Expected processing time 1200, got %v", events[0].ProcessingTimeMs)
	}
	if events[0].ErrorKind != "" {
		t.Errorf("Expected empty error kind for NULL, got %q", events[0].ErrorKind)
	}
	if events[1].ErrorKind != analytics.ErrorKindAIService || events[1].ProcessingTimeMs != nil {
		t.Errorf("Unexpected second event: %+v", events[1])
	}
	expectationsMet(t, mock)
}

func TestWindowExists(t *testing.T) {
	s, mock := newMockStore(t)
	start := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT 1 FROM metric_windows").
		WithArgs(start).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := s.WindowExists(context.Background(), start)
	if err != nil {
		t.Fatalf("WindowExists failed: %v", err)
	}
	if !exists {
		t.Error("Expected window to exist")
	}

	mock.ExpectQuery("SELECT 1 FROM metric_windows").
		WithArgs(start).
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err = s.WindowExists(context.Background(), start)
	if err != nil {
		t.Fatalf("WindowExists failed: %v", err)
	}
	if exists {
		t.Error("Expected window to be absent")
	}
	expectationsMet(t, mock)
}

func TestInsertAndListWindows(t *testing.T) {
	s, mock := newMockStore(t)
	start := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Minute)

	w := analytics.MetricWindow{
		WindowStart:         start,
		WindowEnd:           end,
		TotalExtractions:    6,
		SuccessCount:        2,
		FailureCount:        4,
		SuccessRatePct:      33.33,
		AvgProcessingTimeMs: 2000,
		CountsByCategory:    map[analytics.Category]int64{analytics.CategoryExercise: 3, analytics.CategoryDiet: 3},
		APIUsage:            analytics.APIUsage{RequestCount: 2, TotalTokens: 400, AvgTokensPerRequest: 200, EstimatedCost: 0.04},
		ErrorBreakdown:      map[string]int64{analytics.ErrorKindAIService: 3, analytics.ErrorKindImageProcessing: 1},
	}

	mock.ExpectExec("INSERT INTO metric_windows").
		WithArgs(start, end, int64(6), int64(2), int64(4), 33.33, int64(2000),
			sqlmock.AnyArg(), int64(2), int64(400), int64(200), 0.04, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.InsertWindow(context.Background(), w); err != nil {
		t.Fatalf("InsertWindow failed: %v", err)
	}

	rows := sqlmock.NewRows([]string{
		"window_start", "window_end", "total_extractions", "success_count", "failure_count",
		"success_rate_pct", "avg_processing_time_ms", "counts_by_category",
		"api_request_count", "api_total_tokens", "api_avg_tokens", "api_estimated_cost", "error_breakdown",
	}).AddRow(start, end, int64(6), int64(2), int64(4), 33.33, int64(2000),
		`{"exercise":3,"diet":3}`, int64(2), int64(400), int64(200), 0.04, `{"ai_service":3,"image_processing":1}`)

	mock.ExpectQuery("SELECT window_start, window_end").
		WithArgs(start.Add(-time.Hour)).
		WillReturnRows(rows)

	windows, err := s.ListWindowsSince(context.Background(), start.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListWindowsSince failed: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("Expected 1 window, got %d", len(windows))
	}
	got := windows[0]
	if got.CountsByCategory[analytics.CategoryExercise] != 3 {
		t.Errorf("Expected decoded category counts, got %v", got.CountsByCategory)
	}
	if got.ErrorBreakdown[analytics.ErrorKindAIService] != 3 {
		t.Errorf("Expected decoded error breakdown, got %v", got.ErrorBreakdown)
	}
	expectationsMet(t, mock)
}

func TestInsertAlertAndCooldownLookup(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 1, 15, 12, 5, 0, 0, time.UTC)

	alert := analytics.AlertRecord{
		ID:          "alert-1",
		RuleName:    "high_failure_rate",
		Severity:    analytics.SeverityHigh,
		Message:     "high_failure_rate fired",
		TriggeredAt: at,
		Window:      analytics.MetricWindow{TotalExtractions: 6},
		Status:      analytics.AlertStatusActive,
	}

	mock.ExpectExec("INSERT INTO alerts").
		WithArgs("alert-1", "high_failure_rate", "high", "high_failure_rate fired", at, "active", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.InsertAlert(context.Background(), alert); err != nil {
		t.Fatalf("InsertAlert failed: %v", err)
	}

	since := at.Add(-15 * time.Minute)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alerts`).
		WithArgs("high_failure_rate", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(1)))

	count, err := s.CountAlertsSince(context.Background(), "high_failure_rate", since)
	if err != nil {
		t.Fatalf("CountAlertsSince failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}
	expectationsMet(t, mock)
}

func TestListRecentAlerts(t *testing.T) {
	s, mock := newMockStore(t)
	since := time.Date(2026, 1, 15, 11, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "rule_name", "severity", "message", "triggered_at", "status", "window_snapshot"}).
		AddRow("a2", "no_extractions", "medium", "msg", since.Add(30*time.Minute), "active", `{"totalExtractions":0}`).
		AddRow("a1", "high_api_cost", "high", "msg", since.Add(10*time.Minute), "active", `{"totalExtractions":4}`)

	mock.ExpectQuery("SELECT id, rule_name, severity, message, triggered_at, status, window_snapshot").
		WithArgs(since, 10).
		WillReturnRows(rows)

	alerts, err := s.ListRecentAlerts(context.Background(), since, 10)
	if err != nil {
		t.Fatalf("ListRecentAlerts failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("Expected 2 alerts, got %d", len(alerts))
	}
	if alerts[0].ID != "a2" {
		t.Errorf("Expected newest alert first, got %s", alerts[0].ID)
	}
	if alerts[1].Window.TotalExtractions != 4 {
		t.Errorf("Expected decoded window snapshot, got %+v", alerts[1].Window)
	}
	expectationsMet(t, mock)
}

func TestCountAlertsBySeverity(t *testing.T) {
	s, mock := newMockStore(t)
	since := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"severity", "count"}).
		AddRow("high", int64(3)).
		AddRow("medium", int64(1))

	mock.ExpectQuery(`SELECT severity, COUNT\(\*\) FROM alerts`).
		WithArgs(since).
		WillReturnRows(rows)

	counts, err := s.CountAlertsBySeverity(context.Background(), since)
	if err != nil {
		t.Fatalf("CountAlertsBySeverity failed: %v", err)
	}
	if counts[analytics.SeverityHigh] != 3 || counts[analytics.SeverityMedium] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}
	expectationsMet(t, mock)
}

func TestInsertNotification(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 1, 15, 12, 5, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs("n1", "high_api_cost", "high", "msg", at, sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.InsertNotification(context.Background(), analytics.NotificationRecord{
		ID:            "n1",
		AlertRuleName: "high_api_cost",
		Severity:      analytics.SeverityHigh,
		Message:       "msg",
		CreatedAt:     at,
		Sent:          false,
	})
	if err != nil {
		t.Fatalf("InsertNotification failed: %v", err)
	}
	expectationsMet(t, mock)
}

func TestDeleteBefore(t *testing.T) {
	s, mock := newMockStore(t)
	cutoff := time.Date(2025, 12, 16, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM raw_extraction_events").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))
	mock.ExpectExec("DELETE FROM raw_api_usage_events").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec("DELETE FROM metric_windows").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	ctx := context.Background()
	if n, err := s.DeleteExtractionEventsBefore(ctx, cutoff); err != nil || n != 12 {
		t.Errorf("DeleteExtractionEventsBefore = %d, %v", n, err)
	}
	if n, err := s.DeleteAPIUsageEventsBefore(ctx, cutoff); err != nil || n != 7 {
		t.Errorf("DeleteAPIUsageEventsBefore = %d, %v", n, err)
	}
	if n, err := s.DeleteWindowsBefore(ctx, cutoff); err != nil || n != 3 {
		t.Errorf("DeleteWindowsBefore = %d, %v", n, err)
	}
	expectationsMet(t, mock)
}

func TestEnsureSchema(t *testing.T) {
	s, mock := newMockStore(t)

	for i := 0; i < 9; i++ {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	expectationsMet(t, mock)
}
