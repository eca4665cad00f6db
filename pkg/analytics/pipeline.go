package analytics

import (
	"context"
	"time"
)

// Pipeline couples the aggregator and the evaluator for one scheduler tick:
// rules are checked against a window exactly once, right after it is written.
// A duplicate tick writes nothing and evaluates nothing.
type Pipeline struct {
	aggregator *Aggregator
	evaluator  *Evaluator
}

// NewPipeline creates a new aggregation pipeline
func NewPipeline(aggregator *Aggregator, evaluator *Evaluator) *Pipeline {
	return &Pipeline{
		aggregator: aggregator,
		evaluator:  evaluator,
	}
}

// Tick runs one aggregation pass and, when a new window was written,
// evaluates the alert rules against it. Returns the alerts fired and whether
// a window was written.
func (p *Pipeline) Tick(ctx context.Context, now time.Time) ([]AlertRecord, bool, error) {
	window, written, err := p.aggregator.Run(ctx, now)
	if err != nil {
		return nil, false, err
	}
	if !written {
		return nil, false, nil
	}
	return p.evaluator.Evaluate(ctx, *window), true, nil
}
