package analytics

import "time"

// Category identifies which kind of activity photo an extraction ran against.
type Category string

const (
	CategoryExercise Category = "exercise"
	CategoryDiet     Category = "diet"
)

// Outcome is the result of a single extraction attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error kinds recorded on failed extraction events. Failures without a
// recognized kind are bucketed under ErrorKindUnknown during aggregation.
const (
	ErrorKindImageProcessing = "image_processing"
	ErrorKindAIService       = "ai_service"
	ErrorKindParsing         = "parsing"
	ErrorKindUnknown         = "unknown"
)

// AlertStatusActive is the only status this engine writes; downstream
// tooling may transition alerts out of it.
const AlertStatusActive = "active"

// RawExtractionEvent is one extraction attempt as reported by the pipeline.
// Immutable once written; removed only by the retention job.
type RawExtractionEvent struct {
	CertificationID  string    `json:"certificationId"`
	Category         Category  `json:"category"`
	Outcome          Outcome   `json:"outcome"`
	ErrorKind        string    `json:"errorKind,omitempty"`
	ProcessingTimeMs *int64    `json:"processingTimeMs,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// RawAPIUsageEvent is one call to the external inference service.
type RawAPIUsageEvent struct {
	CertificationID string    `json:"certificationId"`
	RequestKind     string    `json:"requestKind"`
	TokensUsed      int64     `json:"tokensUsed"`
	ResponseTimeMs  int64     `json:"responseTimeMs"`
	EstimatedCost   float64   `json:"estimatedCost"`
	Timestamp       time.Time `json:"timestamp"`
}

// APIUsage aggregates inference-service consumption inside one window.
type APIUsage struct {
	RequestCount        int64   `json:"requestCount"`
	TotalTokens         int64   `json:"totalTokens"`
	AvgTokensPerRequest int64   `json:"avgTokensPerRequest"`
	EstimatedCost       float64 `json:"estimatedCost"`
}

// MetricWindow is one fixed-size rollup over the raw events whose timestamps
// fall in [WindowStart, WindowEnd). Windows are append-only and keyed by
// WindowStart; they are never mutated after creation.
type MetricWindow struct {
	WindowStart         time.Time          `json:"windowStart"`
	WindowEnd           time.Time          `json:"windowEnd"`
	TotalExtractions    int64              `json:"totalExtractions"`
	SuccessCount        int64              `json:"successCount"`
	FailureCount        int64              `json:"failureCount"`
	SuccessRatePct      float64            `json:"successRatePct"`
	AvgProcessingTimeMs int64              `json:"avgProcessingTimeMs"`
	CountsByCategory    map[Category]int64 `json:"countsByCategory"`
	APIUsage            APIUsage           `json:"apiUsage"`
	ErrorBreakdown      map[string]int64   `json:"errorBreakdown"`
}

// AlertRecord is a fired alert rule, carrying a snapshot of the window that
// triggered it. Immutable after creation.
type AlertRecord struct {
	ID          string       `json:"id"`
	RuleName    string       `json:"ruleName"`
	Severity    Severity     `json:"severity"`
	Message     string       `json:"message"`
	TriggeredAt time.Time    `json:"triggeredAt"`
	Window      MetricWindow `json:"window"`
	Status      string       `json:"status"`
}

// NotificationRecord is the dispatch entry created for every new alert.
// Sent is flipped by the downstream delivery system, never by this engine.
type NotificationRecord struct {
	ID            string       `json:"id"`
	AlertRuleName string       `json:"alertRuleName"`
	Severity      Severity     `json:"severity"`
	Message       string       `json:"message"`
	CreatedAt     time.Time    `json:"createdAt"`
	Window        MetricWindow `json:"window"`
	Sent          bool         `json:"sent"`
}
