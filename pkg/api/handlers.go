package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fitsnap/pipewatch/pkg/analytics"
	"github.com/fitsnap/pipewatch/pkg/httputil"
	"github.com/gorilla/mux"
)

// SummaryService is the read side consumed by the analytics endpoint.
type SummaryService interface {
	Query(ctx context.Context, timeRange string) (*analytics.Summary, error)
}

// EventSink is the write side consumed by the event ingestion endpoints.
type EventSink interface {
	RecordExtraction(ctx context.Context, ev analytics.RawExtractionEvent) error
	RecordAPIUsage(ctx context.Context, ev analytics.RawAPIUsageEvent) error
}

// Handlers provides the pipeline metrics API endpoints
type Handlers struct {
	summaries SummaryService
	events    EventSink
}

// NewHandlers creates a new handlers instance
func NewHandlers(summaries SummaryService, events EventSink) *Handlers {
	return &Handlers{
		summaries: summaries,
		events:    events,
	}
}

// RegisterRoutes registers the API routes
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/analytics", h.getAnalytics).Methods("GET")
	r.HandleFunc("/events/extraction", h.postExtractionEvent).Methods("POST")
	r.HandleFunc("/events/api-usage", h.postAPIUsageEvent).Methods("POST")
}

// getAnalytics handles GET /analytics
// Query params:
//   - timeRange: 1h, 6h, 24h, or 7d - unknown values default to 24h
func (h *Handlers) getAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	summary, err := h.summaries.Query(ctx, r.URL.Query().Get("timeRange"))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteData(w, http.StatusOK, summary)
}

// postExtractionEvent handles POST /events/extraction
// Called synchronously by the extraction pipeline on every attempt.
func (h *Handlers) postExtractionEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var ev analytics.RawExtractionEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		httputil.WriteBadRequest(w, "invalid extraction event payload")
		return
	}

	if err := h.events.RecordExtraction(ctx, ev); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteData(w, http.StatusCreated, map[string]bool{"recorded": true})
}

// postAPIUsageEvent handles POST /events/api-usage
// One record per external inference-service call.
func (h *Handlers) postAPIUsageEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var ev analytics.RawAPIUsageEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		httputil.WriteBadRequest(w, "invalid api usage event payload")
		return
	}

	if err := h.events.RecordAPIUsage(ctx, ev); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteData(w, http.StatusCreated, map[string]bool{"recorded": true})
}
