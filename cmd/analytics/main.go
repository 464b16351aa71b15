// Command analytics aggregates the search events that searchengine and
// searcher publish to Kafka and serves the running totals at
// GET /api/v1/analytics/stats.
//
// Usage:
//
//	go run ./cmd/analytics [-config config.json] [-port 8081]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "analytics: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default: search for config.json)")
	port := flag.Int("port", 8081, "HTTP port for the analytics API")
	flag.Parse()

	if *configPath == "" {
		found, err := config.Find("config.json")
		if err != nil {
			return fmt.Errorf("config.json not found: %w", err)
		}
		*configPath = found
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", *port, "topic", cfg.Kafka.Topics.SearchEvents)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdown, err := metrics.StartServer(cfg.Metrics.Port, nil)
		if err != nil {
			slog.Warn("metrics server disabled", "error", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	recorder := analytics.NewRecorder(analytics.NewAggregator(), nil, m)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, analytics.HandleEvent(recorder))
	defer consumer.Close()

	var consuming atomic.Bool
	consuming.Store(true)
	go func() {
		defer consuming.Store(false)
		if err := consumer.Run(ctx); err != nil {
			slog.Error("consumer stopped", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("kafka", health.FlagCheck(consuming.Load, "consumer not running"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics/stats", analytics.NewHandler(recorder).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	<-shutdownDone
	slog.Info("analytics service stopped")
	return nil
}
