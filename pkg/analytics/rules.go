package analytics

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Rule is a declarative alert rule: all conditions must hold against a
// window for the rule to fire, and a fired rule is muted for its cooldown.
// Rules are data, not code; the evaluator interprets them generically.
type Rule struct {
	Name       string
	Severity   Severity
	Cooldown   time.Duration
	Conditions []Condition
}

// Condition compares one window metric against a threshold.
type Condition struct {
	Metric string
	Op     string // "gt", "lt", or "eq"
	Value  float64
}

// Metric selectors understood by the evaluator. Error-breakdown buckets are
// addressed as "errors.<kind>".
const (
	MetricTotalExtractions    = "total_extractions"
	MetricSuccessRatePct      = "success_rate_pct"
	MetricAvgProcessingTimeMs = "avg_processing_time_ms"
	MetricAPICost             = "api_cost"

	errorMetricPrefix = "errors."
)

// DefaultRules returns the built-in rule table. Names, thresholds,
// severities, and cooldowns are fixed for compatibility with existing
// dashboards and alert consumers.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "high_failure_rate",
			Severity: SeverityHigh,
			Cooldown: 15 * time.Minute,
			Conditions: []Condition{
				{Metric: MetricTotalExtractions, Op: "gt", Value: 5},
				{Metric: MetricSuccessRatePct, Op: "lt", Value: 70},
			},
		},
		{
			Name:     "no_extractions",
			Severity: SeverityMedium,
			Cooldown: 30 * time.Minute,
			Conditions: []Condition{
				{Metric: MetricTotalExtractions, Op: "eq", Value: 0},
			},
		},
		{
			Name:     "high_api_cost",
			Severity: SeverityHigh,
			Cooldown: 10 * time.Minute,
			Conditions: []Condition{
				{Metric: MetricAPICost, Op: "gt", Value: 10},
			},
		},
		{
			Name:     "slow_processing",
			Severity: SeverityMedium,
			Cooldown: 20 * time.Minute,
			Conditions: []Condition{
				{Metric: MetricAvgProcessingTimeMs, Op: "gt", Value: 30000},
			},
		},
		{
			Name:     "high_image_errors",
			Severity: SeverityMedium,
			Cooldown: 15 * time.Minute,
			Conditions: []Condition{
				{Metric: errorMetricPrefix + ErrorKindImageProcessing, Op: "gt", Value: 3},
			},
		},
		{
			Name:     "high_ai_service_errors",
			Severity: SeverityHigh,
			Cooldown: 10 * time.Minute,
			Conditions: []Condition{
				{Metric: errorMetricPrefix + ErrorKindAIService, Op: "gt", Value: 5},
			},
		},
	}
}

// Matches reports whether every condition of the rule holds for the window.
func (r Rule) Matches(w MetricWindow) bool {
	for _, c := range r.Conditions {
		if !c.holds(w) {
			return false
		}
	}
	return true
}

func (c Condition) holds(w MetricWindow) bool {
	v, ok := metricValue(w, c.Metric)
	if !ok {
		return false
	}
	switch c.Op {
	case "gt":
		return v > c.Value
	case "lt":
		return v < c.Value
	case "eq":
		return v == c.Value
	default:
		return false
	}
}

// metricValue resolves a metric selector against a window snapshot.
func metricValue(w MetricWindow, metric string) (float64, bool) {
	if kind, ok := strings.CutPrefix(metric, errorMetricPrefix); ok {
		return float64(w.ErrorBreakdown[kind]), true
	}
	switch metric {
	case MetricTotalExtractions:
		return float64(w.TotalExtractions), true
	case MetricSuccessRatePct:
		return w.SuccessRatePct, true
	case MetricAvgProcessingTimeMs:
		return float64(w.AvgProcessingTimeMs), true
	case MetricAPICost:
		return w.APIUsage.EstimatedCost, true
	default:
		return 0, false
	}
}

// ruleSpec is the YAML shape for rule overrides.
type ruleSpec struct {
	Name       string          `yaml:"name"`
	Severity   string          `yaml:"severity"`
	Cooldown   string          `yaml:"cooldown"`
	Conditions []conditionSpec `yaml:"conditions"`
}

type conditionSpec struct {
	Metric string  `yaml:"metric"`
	Op     string  `yaml:"op"`
	Value  float64 `yaml:"value"`
}

// LoadRulesFile parses an alert-rule table from a YAML file. The file
// replaces the default table wholesale; operators typically start from a
// dump of DefaultRules and tune thresholds.
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var specs []ruleSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}

	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("rule %d is missing a name", i)
		}
		cooldown, err := time.ParseDuration(spec.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("rule %s has invalid cooldown %q: %w", spec.Name, spec.Cooldown, err)
		}
		severity := Severity(spec.Severity)
		switch severity {
		case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		default:
			return nil, fmt.Errorf("rule %s has invalid severity %q", spec.Name, spec.Severity)
		}
		if len(spec.Conditions) == 0 {
			return nil, fmt.Errorf("rule %s has no conditions", spec.Name)
		}

		rule := Rule{
			Name:     spec.Name,
			Severity: severity,
			Cooldown: cooldown,
		}
		for _, c := range spec.Conditions {
			switch c.Op {
			case "gt", "lt", "eq":
			default:
				return nil, fmt.Errorf("rule %s has invalid operator %q", spec.Name, c.Op)
			}
			if _, ok := metricValue(MetricWindow{}, c.Metric); !ok {
				return nil, fmt.Errorf("rule %s references unknown metric %q", spec.Name, c.Metric)
			}
			rule.Conditions = append(rule.Conditions, Condition(c))
		}
		rules = append(rules, rule)
	}

	return rules, nil
}
