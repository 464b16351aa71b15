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
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/ratelimit"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "searcher: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default: search for config.json)")
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
	slog.Info("starting search service", "app", cfg.App.Name, "port", cfg.Server.Port)

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

	buildCtx, span := tracing.StartSpan(ctx, "startup-build", "")
	engine := indexer.NewEngine(indexer.WithMetrics(m))
	if _, err := engine.BuildFromFiles(buildCtx, cfg.DocumentPaths()); err != nil {
		span.SetError(err)
		span.End()
		return fmt.Errorf("building index: %w", err)
	}
	span.End()
	span.Log(slog.Default())

	checker := health.NewChecker()
	checker.Register("index", health.FlagCheck(engine.Ready, "index not built"))

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis.CacheTTL, engine.Fingerprint(), m)
			checker.Register("redis", redisClient.HealthCheck())
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var collector *analytics.Collector
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector = analytics.NewCollector(producer, 0, 0, 0)
		// Stopped by Close once the server has drained, not by the signal.
		collector.Start(context.Background())
		defer collector.Close()
		slog.Info("search events enabled", "topic", producer.Topic())
	}
	recorder := analytics.NewRecorder(analytics.NewAggregator(), collector, m)

	s := searcher.New(engine.Index(),
		searcher.WithWorkers(cfg.Search.Workers),
		searcher.WithObserver(recorder.Observer("")),
	)
	h := handler.New(engine, s, queryCache, recorder, cfg.App.MaxResponses, cfg.Search.MaxResults)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics/stats", analytics.NewHandler(recorder).Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	mws := []func(http.Handler) http.Handler{middleware.RequestID, middleware.Metrics(m)}
	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
		mws = append(mws, middleware.CORS(corsCfg))
	}
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, time.Minute)
		go limiter.RunJanitor(ctx, 5*time.Minute)
		mws = append(mws, middleware.RateLimit(limiter, cfg.Server.TrustForwardedFor))
		slog.Info("rate limiting enabled",
			"per_minute", cfg.Server.RateLimit,
			"trust_forwarded_for", cfg.Server.TrustForwardedFor,
		)
	}
	mws = append(mws, middleware.Timeout(cfg.Server.WriteTimeout))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Handlers may still be recording into the collector until Shutdown
	// returns, so run waits for it before its deferred Close runs.
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

	slog.Info("search service listening",
		"addr", server.Addr,
		"documents", engine.Index().DocCount(),
		"workers", s.Workers(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	<-shutdownDone
	slog.Info("search service stopped", "uptime", time.Since(engine.BuiltAt()).Round(time.Second))
	return nil
}
