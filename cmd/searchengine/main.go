package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/history"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/postgres"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "searchengine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config file (default: search for config.json)")
	requestsPath := flag.String("requests", "", "override the requests file")
	answersPath := flag.String("answers", "", "override the answers file")
	workers := flag.Int("workers", -1, "concurrent queries (0 = GOMAXPROCS, 1 = sequential)")
	runID := flag.String("run-id", "", "identifier for this run (generated when empty)")
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
		fmt.Fprintln(os.Stderr, "check that the config file has a 'config' section with a 'name' and a non-empty 'files' list")
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *requestsPath != "" {
		cfg.Requests = *requestsPath
	}
	if *answersPath != "" {
		cfg.Answers = *answersPath
	}
	if *workers >= 0 {
		cfg.Search.Workers = *workers
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("search engine starting",
		"app", cfg.App.Name,
		"version", cfg.App.Version,
		"config", *configPath,
		"documents", len(cfg.Files),
		"max_responses", cfg.App.MaxResponses,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := pipeline.Options{RunID: *runID}

	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.New(nil)
		shutdown, err := metrics.StartServer(cfg.Metrics.Port, nil)
		if err != nil {
			slog.Warn("metrics server disabled", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				shutdown(shutdownCtx)
			}()
		}
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 0, 0, 0)
		collector.Start(ctx)
		defer collector.Close()
		opts.Collector = collector
		slog.Info("search events enabled", "topic", producer.Topic(), "brokers", cfg.Kafka.Brokers)
	}

	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			slog.Warn("postgres unavailable, run history disabled", "error", err)
		} else {
			defer db.Close()
			store := history.NewStore(db)
			if err := store.Migrate(ctx); err != nil {
				slog.Warn("run history disabled", "error", err)
			} else {
				opts.History = store
			}
		}
	}

	report, err := pipeline.Run(ctx, cfg, opts)
	if err != nil {
		return fmt.Errorf("search run failed: %w", err)
	}

	for i, docs := range report.Results {
		if len(docs) == 0 {
			fmt.Printf("request%03d: no results\n", i+1)
			continue
		}
		fmt.Printf("request%03d: %d results %v\n", i+1, len(docs), docs)
	}
	fmt.Printf("answered %d/%d requests, %d results, %d documents, %d terms in %v\nanswers written to %s\n",
		report.Answered, len(report.Results), report.TotalResults,
		report.Index.DocumentCount, report.Index.TermCount,
		report.Duration.Round(time.Millisecond), report.AnswersPath,
	)
	return nil
}
