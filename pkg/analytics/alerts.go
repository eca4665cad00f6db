package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fitsnap/pipewatch/pkg/observability"
	"github.com/google/uuid"
)

// Evaluator checks the alert rule table against freshly computed metric
// windows. Every rule is evaluated against the same window snapshot; rules
// fire independently of each other.
//
// Cooldown enforcement is a check-then-write against the alert store. Two
// evaluator runs overlapping in real time can both pass the check and fire a
// duplicate alert; with the aggregation cadence far exceeding run duration
// this is a tolerated race, not something worth a distributed lock.
type Evaluator struct {
	rules      []Rule
	alerts     AlertStore
	dispatcher *Dispatcher
	logger     *observability.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// NewEvaluator creates an evaluator over the given rule table. Pass
// DefaultRules() unless an override file is configured.
func NewEvaluator(rules []Rule, alerts AlertStore, dispatcher *Dispatcher, logger *observability.Logger, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{
		rules:      rules,
		alerts:     alerts,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Evaluate runs every rule against the window and returns the alerts that
// fired. A store failure on one rule is logged and does not stop the
// remaining rules from being evaluated.
func (e *Evaluator) Evaluate(ctx context.Context, w MetricWindow) []AlertRecord {
	now := e.now().UTC()

	var fired []AlertRecord
	for _, rule := range e.rules {
		if !rule.Matches(w) {
			continue
		}

		log := e.logger.WithFields(map[string]interface{}{
			"rule":     rule.Name,
			"severity": string(rule.Severity),
		})

		count, err := e.alerts.CountAlertsSince(ctx, rule.Name, now.Add(-rule.Cooldown))
		if err != nil {
			log.WithError(err).Error("cooldown lookup failed, skipping rule")
			continue
		}
		if count > 0 {
			log.Debug("alert suppressed by cooldown")
			if e.metrics != nil {
				e.metrics.AlertsSuppressedTotal.WithLabelValues(rule.Name).Inc()
			}
			continue
		}

		alert := AlertRecord{
			ID:          uuid.NewString(),
			RuleName:    rule.Name,
			Severity:    rule.Severity,
			Message:     buildMessage(rule, w),
			TriggeredAt: now,
			Window:      w,
			Status:      AlertStatusActive,
		}

		if err := e.alerts.InsertAlert(ctx, alert); err != nil {
			log.WithError(err).Error("failed to write alert record")
			continue
		}

		log.WithFields(map[string]interface{}{
			"message":      alert.Message,
			"window_start": w.WindowStart.Format(time.RFC3339),
		}).Warn("alert fired")
		if e.metrics != nil {
			e.metrics.AlertsFiredTotal.WithLabelValues(rule.Name, string(rule.Severity)).Inc()
		}

		// Notification failure is logged inside the dispatcher and never
		// rolls back the alert: at-least-once alerting beats losing alerts.
		if _, err := e.dispatcher.Dispatch(ctx, alert); err != nil {
			log.WithError(err).Error("failed to enqueue notification")
		}

		fired = append(fired, alert)
	}

	return fired
}

// buildMessage renders a human-readable message from the rule's conditions
// and the window values that satisfied them.
func buildMessage(rule Rule, w MetricWindow) string {
	parts := make([]string, 0, len(rule.Conditions))
	for _, c := range rule.Conditions {
		actual, _ := metricValue(w, c.Metric)
		parts = append(parts, fmt.Sprintf("%s=%s (%s %s)",
			c.Metric, formatMetric(actual), c.Op, formatMetric(c.Value)))
	}
	return fmt.Sprintf("%s: %s in window starting %s",
		rule.Name, strings.Join(parts, ", "), w.WindowStart.Format(time.RFC3339))
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
