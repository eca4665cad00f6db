package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fitsnap/pipewatch/pkg/analytics"
	"github.com/fitsnap/pipewatch/pkg/api"
	"github.com/fitsnap/pipewatch/pkg/config"
	"github.com/fitsnap/pipewatch/pkg/observability"
	"github.com/fitsnap/pipewatch/pkg/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	st, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to store: %v", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	logger.WithField("driver", cfg.Store.Driver).Info("store initialized")

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	var redisClient *redis.Client
	var cache *analytics.SummaryCache
	if cfg.Cache.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		defer redisClient.Close()
		cache = analytics.NewSummaryCache(redisClient, cfg.Cache.TTL, logger)
		logger.WithField("addr", cfg.Cache.Addr).Info("summary cache enabled")
	}

	recorder := analytics.NewEventRecorder(st, st, logger, metrics)
	queries := analytics.NewQueryService(st, st, cache, logger, metrics)

	handlers := api.NewHandlers(queries, recorder)
	health := observability.NewHealthChecker(st.DB(), redisClient)
	server := api.NewServer(handlers, health, metrics, registry, logger)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", addr).Info("starting pipewatch server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("shutdown did not complete cleanly")
	}
	logger.Info("server stopped")
}
