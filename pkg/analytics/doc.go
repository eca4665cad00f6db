// Package analytics is the metrics aggregation and alerting engine for the
// photo-extraction pipeline.
//
// # Overview
//
// The extraction pipeline reports every attempt and every inference-service
// call through EventRecorder. On a fixed cadence the Aggregator rolls the
// trailing window of raw events into one immutable MetricWindow; the
// Evaluator then checks the alert rule table against that window, writing an
// AlertRecord and a NotificationRecord for each rule that fires outside its
// cooldown. QueryService serves cross-window summaries for dashboards, and
// RetentionManager purges raw events and rollups past their horizons.
//
// # Data flow
//
//	EventRecorder -> raw stores -> Aggregator -> window ledger
//	                                   |
//	                                   v
//	                           Evaluator -> alerts -> Dispatcher -> notifications
//
// # Scheduling model
//
// Each job is a short-lived, stateless unit of work driven by an external
// scheduler with at-least-once semantics. All durable state lives in the
// document store; the Aggregator's check-then-insert keyed by windowStart
// makes duplicate invocations harmless.
//
// # Usage
//
// Record an event:
//
//	recorder.RecordExtraction(ctx, analytics.RawExtractionEvent{
//		CertificationID: "cert-123",
//		Category:        analytics.CategoryExercise,
//		Outcome:         analytics.OutcomeSuccess,
//	})
//
// Aggregate and evaluate one tick:
//
//	window, created, err := aggregator.Run(ctx, time.Now())
//	if err == nil && created {
//		evaluator.Evaluate(ctx, *window)
//	}
//
// Query a dashboard summary:
//
//	summary, err := service.Query(ctx, "24h")
package analytics
