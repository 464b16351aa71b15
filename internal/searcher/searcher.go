// Package searcher answers batches of queries against a built index. Each
// query is processed independently, in parallel when more than one worker
// is available, and results come back in the order the queries were given.
package searcher

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/ranker"
)

// DefaultMaxResponses bounds the result list of a query when the caller
// passes a non-positive limit.
const DefaultMaxResponses = 5

// Outcome describes one finished query. Observers receive it from worker
// goroutines.
type Outcome struct {
	Position int
	Result   *executor.SearchResult
	Latency  time.Duration
}

// Stats summarises a batch of queries without scoring them.
type Stats struct {
	TotalQueries         int     `json:"total_queries"`
	QueriesWithResults   int     `json:"queries_with_results"`
	AverageTermsPerQuery float64 `json:"average_terms_per_query"`
}

type Option func(*Searcher)

// WithWorkers caps how many queries run at once. Zero or less means
// runtime.GOMAXPROCS(0); one forces sequential processing.
func WithWorkers(n int) Option {
	return func(s *Searcher) {
		s.workers = n
	}
}

// WithObserver registers a callback invoked after every query. It must be
// safe for concurrent use.
func WithObserver(fn func(Outcome)) Option {
	return func(s *Searcher) {
		s.observers = append(s.observers, fn)
	}
}

// Searcher holds a read-only index. The index must not be rebuilt while a
// Search call is in flight.
type Searcher struct {
	index     index.Reader
	exec      *executor.Executor
	workers   int
	observers []func(Outcome)
	logger    *slog.Logger
}

func New(idx index.Reader, opts ...Option) *Searcher {
	s := &Searcher{
		index:  idx,
		exec:   executor.New(idx),
		logger: slog.Default().With("component", "searcher"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers <= 0 {
		s.workers = runtime.GOMAXPROCS(0)
	}
	return s
}

// Workers reports the effective concurrency limit.
func (s *Searcher) Workers() int {
	return s.workers
}

// Search returns one ranked list per query, position i answering queries[i].
// The only error is the context's, when it is cancelled before every query
// has run.
func (s *Searcher) Search(ctx context.Context, queries []string, maxResponses int) ([][]ranker.RelativeIndex, error) {
	results, err := s.Execute(ctx, queries, maxResponses)
	if err != nil {
		return nil, err
	}
	lists := make([][]ranker.RelativeIndex, len(results))
	for i, r := range results {
		lists[i] = r.Results
	}
	return lists, nil
}

// Execute is Search with the full per-query result, including hit counts
// and term statistics.
func (s *Searcher) Execute(ctx context.Context, queries []string, maxResponses int) ([]*executor.SearchResult, error) {
	if maxResponses <= 0 {
		maxResponses = DefaultMaxResponses
	}
	results := make([]*executor.SearchResult, len(queries))
	start := time.Now()

	if len(queries) <= 1 || s.workers <= 1 {
		for i, query := range queries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			results[i] = s.runQuery(i, query, maxResponses)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i, query := range queries {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = s.runQuery(i, query, maxResponses)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("query batch executed",
		"queries", len(queries),
		"workers", min(s.workers, max(len(queries), 1)),
		"max_responses", maxResponses,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return results, nil
}

// Stats counts the queries, the queries with at least one indexed term and
// the mean number of distinct terms per query.
func (s *Searcher) Stats(queries []string) Stats {
	stats := Stats{TotalQueries: len(queries)}
	if len(queries) == 0 {
		return stats
	}
	totalTerms := 0
	for _, query := range queries {
		plan := parser.Parse(query)
		totalTerms += len(plan.Terms)
		for _, term := range plan.Terms {
			if s.index.Contains(term) {
				stats.QueriesWithResults++
				break
			}
		}
	}
	stats.AverageTermsPerQuery = float64(totalTerms) / float64(len(queries))
	return stats
}

func (s *Searcher) runQuery(position int, query string, limit int) *executor.SearchResult {
	start := time.Now()
	result := s.exec.Execute(parser.Parse(query), limit)
	if len(s.observers) > 0 {
		outcome := Outcome{
			Position: position,
			Result:   result,
			Latency:  time.Since(start),
		}
		for _, fn := range s.observers {
			fn(outcome)
		}
	}
	return result
}
