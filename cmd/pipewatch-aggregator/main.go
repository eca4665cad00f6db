package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/fitsnap/pipewatch/pkg/analytics"
	"github.com/fitsnap/pipewatch/pkg/config"
	"github.com/fitsnap/pipewatch/pkg/observability"
	"github.com/fitsnap/pipewatch/pkg/store"
)

var (
	runOnce = flag.Bool("run-once", false, "Run aggregation once and exit (for testing or backfilling)")
	atTime  = flag.String("at", "", "Instant to aggregate around, RFC3339 (e.g. 2026-01-02T15:04:05Z). If empty, uses now. Only used with --run-once")
)

func main() {
	flag.Parse()

	jobLog := logrus.New()
	jobLog.SetLevel(logrus.InfoLevel)

	cfg, err := config.LoadConfig()
	if err != nil {
		jobLog.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		jobLog.Fatalf("Failed to connect to store: %v", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(context.Background()); err != nil {
		jobLog.Fatalf("Failed to ensure schema: %v", err)
	}

	rules := analytics.DefaultRules()
	if cfg.Jobs.RulesFile != "" {
		rules, err = analytics.LoadRulesFile(cfg.Jobs.RulesFile)
		if err != nil {
			jobLog.Fatalf("Failed to load rules file %s: %v", cfg.Jobs.RulesFile, err)
		}
		jobLog.Infof("Loaded %d alert rules from %s", len(rules), cfg.Jobs.RulesFile)
	}

	aggLogger := logger.WithField("job", "aggregation")
	aggregator := analytics.NewAggregator(st, st, st, cfg.Jobs.WindowSize, aggLogger, metrics)
	dispatcher := analytics.NewDispatcher(st, aggLogger, metrics)
	evaluator := analytics.NewEvaluator(rules, st, dispatcher, aggLogger, metrics)
	pipeline := analytics.NewPipeline(aggregator, evaluator)
	retention := analytics.NewRetentionManager(st, st, st, cfg.Jobs.RawRetention, cfg.Jobs.RollupRetention, logger.WithField("job", "retention"), metrics)

	runAggregation := func(now time.Time) error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Jobs.AggregationTimeout)
		defer cancel()

		_, _, err := pipeline.Tick(ctx, now)
		return err
	}

	// Run once mode (for testing or backfilling)
	if *runOnce {
		now := time.Now().UTC()
		if *atTime != "" {
			now, err = time.Parse(time.RFC3339, *atTime)
			if err != nil {
				jobLog.Fatalf("Invalid --at value: %v", err)
			}
		}

		jobLog.Infof("Running aggregation around %s", now.Format(time.RFC3339))
		if err := runAggregation(now); err != nil {
			jobLog.Fatalf("Aggregation failed: %v", err)
		}
		jobLog.Info("Aggregation completed successfully")
		return
	}

	// Scheduled mode
	c := cron.New()

	_, err = c.AddFunc(cfg.Jobs.AggregationSchedule, func() {
		if err := runAggregation(time.Now().UTC()); err != nil {
			jobLog.Errorf("Aggregation failed: %v", err)
		}
	})
	if err != nil {
		jobLog.Fatalf("Failed to schedule aggregation: %v", err)
	}

	_, err = c.AddFunc(cfg.Jobs.RetentionSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Jobs.RetentionTimeout)
		defer cancel()

		if err := retention.Run(ctx, time.Now().UTC()); err != nil {
			jobLog.Errorf("Retention failed: %v", err)
		}
	})
	if err != nil {
		jobLog.Fatalf("Failed to schedule retention: %v", err)
	}

	c.Start()
	jobLog.Info("Pipewatch aggregator started")
	jobLog.Infof("Aggregation schedule: %s", cfg.Jobs.AggregationSchedule)
	jobLog.Infof("Retention schedule: %s", cfg.Jobs.RetentionSchedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	jobLog.Info("Shutting down gracefully...")

	ctx := c.Stop()
	<-ctx.Done()

	jobLog.Info("Aggregator stopped")
}
