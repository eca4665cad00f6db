package analytics

import (
	"context"
	"time"

	"github.com/fitsnap/pipewatch/pkg/observability"
	"golang.org/x/sync/errgroup"
)

// RetentionManager purges records past their retention horizons. It runs
// once daily; the three deletion batches are independent, so a failure in
// one entity class never blocks the others.
type RetentionManager struct {
	extractions   ExtractionEventStore
	usage         APIUsageEventStore
	windows       WindowStore
	rawHorizon    time.Duration
	rollupHorizon time.Duration
	logger        *observability.Logger
	metrics       *observability.Metrics
}

// NewRetentionManager creates a retention manager with the given horizons
// (raw events and rollups respectively).
func NewRetentionManager(extractions ExtractionEventStore, usage APIUsageEventStore, windows WindowStore, rawHorizon, rollupHorizon time.Duration, logger *observability.Logger, metrics *observability.Metrics) *RetentionManager {
	return &RetentionManager{
		extractions:   extractions,
		usage:         usage,
		windows:       windows,
		rawHorizon:    rawHorizon,
		rollupHorizon: rollupHorizon,
		logger:        logger,
		metrics:       metrics,
	}
}

// Run deletes raw events older than the raw horizon and metric windows older
// than the rollup horizon. Each batch logs its own outcome; the returned
// error is the first failure, after all batches have run.
func (m *RetentionManager) Run(ctx context.Context, now time.Time) error {
	rawCutoff := now.UTC().Add(-m.rawHorizon)
	rollupCutoff := now.UTC().Add(-m.rollupHorizon)

	var g errgroup.Group

	g.Go(func() error {
		return m.purge(ctx, "raw_extraction_events", rawCutoff, m.extractions.DeleteExtractionEventsBefore)
	})
	g.Go(func() error {
		return m.purge(ctx, "raw_api_usage_events", rawCutoff, m.usage.DeleteAPIUsageEventsBefore)
	})
	g.Go(func() error {
		return m.purge(ctx, "metric_windows", rollupCutoff, m.windows.DeleteWindowsBefore)
	})

	err := g.Wait()
	if m.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		m.metrics.RetentionRunsTotal.WithLabelValues(status).Inc()
	}
	return err
}

func (m *RetentionManager) purge(ctx context.Context, collection string, cutoff time.Time, del func(context.Context, time.Time) (int64, error)) error {
	log := m.logger.WithFields(map[string]interface{}{
		"collection": collection,
		"cutoff":     cutoff.Format(time.RFC3339),
	})

	deleted, err := del(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("retention batch failed")
		return err
	}

	log.WithField("deleted", deleted).Info("retention batch completed")
	if m.metrics != nil {
		m.metrics.RetentionDeletedTotal.WithLabelValues(collection).Add(float64(deleted))
	}
	return nil
}
