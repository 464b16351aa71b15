// Package pipeline runs one batch search: load the corpus, build the index,
// answer every request and write the answers file. Optional subsystems
// (Kafka events, run history) hang off the run through Options.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/converter"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/history"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/tracing"
)

// HistoryStore is the part of history.Store a run uses.
type HistoryStore interface {
	Latest(ctx context.Context, appName string) (*history.RunSnapshot, error)
	Save(ctx context.Context, snap history.RunSnapshot) error
}

type Options struct {
	// RunID tags logs, events and the history snapshot. Generated when empty.
	RunID     string
	Metrics   *metrics.Metrics
	Collector *analytics.Collector
	History   HistoryStore
}

// Report is what a run produced.
type Report struct {
	RunID        string
	Index        index.Stats
	Queries      searcher.Stats
	Analytics    analytics.AggregatedStats
	Results      [][]int
	Answered     int
	TotalResults int
	AnswersPath  string
	Duration     time.Duration
}

// Run executes the batch described by cfg.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Report, error) {
	start := time.Now()
	ctx, root := tracing.StartSpan(ctx, "search-run", opts.RunID)
	defer func() {
		root.End()
		root.Log(slog.Default())
	}()
	runID := root.TraceID
	logger := slog.Default().With("component", "pipeline", "run_id", runID)
	logger.Info("search run starting", "app", cfg.App.Name, "version", cfg.App.Version)

	engine := indexer.NewEngine(indexer.WithMetrics(opts.Metrics))
	indexStats, err := engine.BuildFromFiles(ctx, cfg.DocumentPaths())
	if err != nil {
		root.SetError(err)
		return nil, fmt.Errorf("building index: %w", err)
	}

	requests, err := readRequests(cfg, logger)
	if err != nil {
		root.SetError(err)
		return nil, err
	}
	if len(requests) == 0 {
		logger.Warn("no search requests found", "path", cfg.RequestsPath())
	}

	recorder := analytics.NewRecorder(analytics.NewAggregator(), opts.Collector, opts.Metrics)
	s := searcher.New(engine.Index(),
		searcher.WithWorkers(cfg.Search.Workers),
		searcher.WithObserver(recorder.Observer(runID)),
	)
	queryStats := s.Stats(requests)
	logger.Info("search statistics",
		"total_queries", queryStats.TotalQueries,
		"queries_with_results", queryStats.QueriesWithResults,
		"average_terms_per_query", queryStats.AverageTermsPerQuery,
	)

	searchCtx, span := tracing.StartChildSpan(ctx, "search.batch")
	batchStart := time.Now()
	results, err := s.Search(searchCtx, requests, cfg.App.MaxResponses)
	span.SetAttr("queries", len(requests))
	span.SetAttr("workers", s.Workers())
	span.End()
	if err != nil {
		root.SetError(err)
		return nil, fmt.Errorf("searching: %w", err)
	}
	if opts.Metrics != nil {
		opts.Metrics.BatchDuration.Observe(time.Since(batchStart).Seconds())
	}

	_, span = tracing.StartChildSpan(ctx, "answers.write")
	answersPath := cfg.AnswersPath()
	err = converter.WriteAnswers(answersPath, results, cfg.App.MaxResponses)
	span.End()
	if err != nil {
		root.SetError(err)
		return nil, fmt.Errorf("writing answers: %w", err)
	}

	report := &Report{
		RunID:       runID,
		Index:       indexStats,
		Queries:     queryStats,
		Analytics:   recorder.Stats(),
		Results:     make([][]int, len(results)),
		AnswersPath: answersPath,
	}
	for i, list := range results {
		report.Results[i] = make([]int, len(list))
		for j, r := range list {
			report.Results[i][j] = r.DocID
		}
		if len(list) > 0 {
			report.Answered++
			report.TotalResults += len(list)
		}
	}
	report.Duration = time.Since(start)

	if opts.History != nil {
		saveHistory(ctx, logger, opts.History, cfg, s.Workers(), report)
	}

	logger.Info("search run finished",
		"answered", report.Answered,
		"requests", len(requests),
		"total_results", report.TotalResults,
		"answers", answersPath,
		"elapsed_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}

// readRequests loads the requests file; when it is not next to the config
// file the usual search locations are tried. A missing file means no
// requests; a malformed one fails the run.
func readRequests(cfg *config.Config, logger *slog.Logger) ([]string, error) {
	path := cfg.RequestsPath()
	if _, err := os.Stat(path); err != nil {
		if found, findErr := config.Find(cfg.Requests); findErr == nil {
			path = found
		}
	}
	requests, err := converter.ReadRequests(path)
	if errors.Is(err, apperrors.ErrFileNotFound) {
		logger.Warn("requests file not found, continuing without requests", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading requests: %w", err)
	}
	return requests, nil
}

// saveHistory is best effort: a history failure never fails the run.
func saveHistory(ctx context.Context, logger *slog.Logger, store HistoryStore, cfg *config.Config, workers int, report *Report) {
	ctx, span := tracing.StartChildSpan(ctx, "history.save")
	defer span.End()

	prev, err := store.Latest(ctx, cfg.App.Name)
	if err != nil {
		logger.Warn("loading previous run failed", "error", err)
	}
	snap := history.RunSnapshot{
		RunID:        report.RunID,
		AppName:      cfg.App.Name,
		AppVersion:   cfg.App.Version,
		Index:        report.Index,
		Queries:      report.Queries,
		Analytics:    report.Analytics,
		MaxResponses: cfg.App.MaxResponses,
		Workers:      workers,
		Duration:     report.Duration,
	}
	if err := store.Save(ctx, snap); err != nil {
		span.SetError(err)
		logger.Warn("saving run snapshot failed", "error", err)
		return
	}
	history.Compare(logger, prev, snap)
}
