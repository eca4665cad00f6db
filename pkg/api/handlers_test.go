package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitsnap/pipewatch/pkg/analytics"
)

type stubSummaryService struct {
	gotTimeRange string
	summary      *analytics.Summary
	err          error
}

func (s *stubSummaryService) Query(ctx context.Context, timeRange string) (*analytics.Summary, error) {
	s.gotTimeRange = timeRange
	return s.summary, s.err
}

type stubEventSink struct {
	extractions []analytics.RawExtractionEvent
	usage       []analytics.RawAPIUsageEvent
	err         error
}

func (s *stubEventSink) RecordExtraction(ctx context.Context, ev analytics.RawExtractionEvent) error {
	if s.err != nil {
		return s.err
	}
	s.extractions = append(s.extractions, ev)
	return nil
}

func (s *stubEventSink) RecordAPIUsage(ctx context.Context, ev analytics.RawAPIUsageEvent) error {
	if s.err != nil {
		return s.err
	}
	s.usage = append(s.usage, ev)
	return nil
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Timestamp string          `json:"timestamp"`
}

func newTestRouter(summaries SummaryService, events EventSink) *mux.Router {
	r := mux.NewRouter()
	NewHandlers(summaries, events).RegisterRoutes(r)
	return r
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotEmpty(t, env.Timestamp)
	return env
}

func TestGetAnalytics(t *testing.T) {
	summaries := &stubSummaryService{
		summary: &analytics.Summary{
			TimeRange: analytics.TimeRange6h,
			Summary:   analytics.ExtractionSummary{TotalExtractions: 15, SuccessRate: 80},
		},
	}
	router := newTestRouter(summaries, &stubEventSink{})

	req := httptest.NewRequest("GET", "/analytics?timeRange=6h", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "6h", summaries.gotTimeRange)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	var got analytics.Summary
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, int64(15), got.Summary.TotalExtractions)
	assert.Equal(t, 80.0, got.Summary.SuccessRate)
}

func TestGetAnalyticsPassesUnknownRangeThrough(t *testing.T) {
	summaries := &stubSummaryService{summary: &analytics.Summary{TimeRange: analytics.TimeRange24h}}
	router := newTestRouter(summaries, &stubEventSink{})

	req := httptest.NewRequest("GET", "/analytics?timeRange=century", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// The query service owns the fallback; the handler passes the raw value.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "century", summaries.gotTimeRange)
}

func TestGetAnalyticsServiceError(t *testing.T) {
	summaries := &stubSummaryService{err: fmt.Errorf("store unavailable")}
	router := newTestRouter(summaries, &stubEventSink{})

	req := httptest.NewRequest("GET", "/analytics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "store unavailable")
}

func TestPostExtractionEvent(t *testing.T) {
	sink := &stubEventSink{}
	router := newTestRouter(&stubSummaryService{}, sink)

	body := `{"certificationId":"cert-1","category":"exercise","outcome":"success","processingTimeMs":1500}`
	req := httptest.NewRequest("POST", "/events/extraction", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	require.Len(t, sink.extractions, 1)
	ev := sink.extractions[0]
	assert.Equal(t, "cert-1", ev.CertificationID)
	assert.Equal(t, analytics.CategoryExercise, ev.Category)
	assert.Equal(t, analytics.OutcomeSuccess, ev.Outcome)
	require.NotNil(t, ev.ProcessingTimeMs)
	assert.Equal(t, int64(1500), *ev.ProcessingTimeMs)
}

func TestPostExtractionEventBadJSON(t *testing.T) {
	sink := &stubEventSink{}
	router := newTestRouter(&stubSummaryService{}, sink)

	req := httptest.NewRequest("POST", "/events/extraction", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Empty(t, sink.extractions)
}

func TestPostExtractionEventSinkError(t *testing.T) {
	sink := &stubEventSink{err: fmt.Errorf("write failed")}
	router := newTestRouter(&stubSummaryService{}, sink)

	body := `{"certificationId":"cert-1","category":"diet","outcome":"failure"}`
	req := httptest.NewRequest("POST", "/events/extraction", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPostAPIUsageEvent(t *testing.T) {
	sink := &stubEventSink{}
	router := newTestRouter(&stubSummaryService{}, sink)

	body := `{"certificationId":"cert-1","requestKind":"extraction","tokensUsed":250,"responseTimeMs":800,"estimatedCost":0.012}`
	req := httptest.NewRequest("POST", "/events/api-usage", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, sink.usage, 1)
	assert.Equal(t, int64(250), sink.usage[0].TokensUsed)
	assert.Equal(t, 0.012, sink.usage[0].EstimatedCost)
}

func TestMethodNotAllowed(t *testing.T) {
	router := newTestRouter(&stubSummaryService{}, &stubEventSink{})

	req := httptest.NewRequest("DELETE", "/analytics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
