// Package indexer turns the configured document files into a searchable
// in-memory index.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/tracing"
)

type Option func(*Engine)

// WithMetrics records build statistics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLoadConcurrency bounds how many document files are read at once.
func WithLoadConcurrency(n int) Option {
	return func(e *Engine) {
		e.loader = corpus.NewLoader(n)
	}
}

// Engine loads a corpus and builds the index over it. Build must complete
// before the index is handed to readers.
type Engine struct {
	loader      *corpus.Loader
	memIndex    *index.MemoryIndex
	metrics     *metrics.Metrics
	logger      *slog.Logger
	fingerprint string
	builtAt     time.Time
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		loader:   corpus.NewLoader(0),
		memIndex: index.New(),
		logger:   slog.Default().With("component", "indexer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildFromFiles reads every path and indexes the documents. Document ids
// are positions in paths; unreadable files are indexed as empty documents.
func (e *Engine) BuildFromFiles(ctx context.Context, paths []string) (index.Stats, error) {
	if len(paths) == 0 {
		return index.Stats{}, apperrors.ErrNoDocuments
	}
	ctx, span := tracing.StartChildSpan(ctx, "corpus.load")
	docs, err := e.loader.Load(ctx, paths)
	span.SetAttr("files", len(paths))
	span.End()
	if err != nil {
		return index.Stats{}, fmt.Errorf("loading corpus: %w", err)
	}
	return e.Build(ctx, docs), nil
}

// Build replaces the index contents with docs.
func (e *Engine) Build(ctx context.Context, docs []string) index.Stats {
	_, span := tracing.StartChildSpan(ctx, "index.build")
	defer span.End()

	start := time.Now()
	e.memIndex.Build(docs)
	elapsed := time.Since(start)

	e.fingerprint = fingerprint(docs)
	e.builtAt = time.Now()
	stats := e.memIndex.Stats()

	empty := 0
	for _, doc := range docs {
		if strings.TrimSpace(doc) == "" {
			empty++
		}
	}
	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Add(float64(len(docs)))
		e.metrics.EmptyDocsTotal.Add(float64(empty))
		e.metrics.IndexBuildDuration.Observe(elapsed.Seconds())
		e.metrics.IndexTerms.Set(float64(stats.TermCount))
		e.metrics.IndexPostings.Set(float64(stats.PostingCount))
	}
	span.SetAttr("documents", stats.DocumentCount)
	span.SetAttr("terms", stats.TermCount)

	e.logger.Info("index built",
		"documents", stats.DocumentCount,
		"empty_documents", empty,
		"terms", stats.TermCount,
		"postings", stats.PostingCount,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return stats
}

// Index returns the built index.
func (e *Engine) Index() *index.MemoryIndex {
	return e.memIndex
}

// Fingerprint identifies the indexed corpus contents. It is empty before
// the first build.
func (e *Engine) Fingerprint() string {
	return e.fingerprint
}

// BuiltAt reports when the last build finished.
func (e *Engine) BuiltAt() time.Time {
	return e.builtAt
}

// Ready reports whether an index has been built.
func (e *Engine) Ready() bool {
	return e.fingerprint != ""
}

func fingerprint(docs []string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d\x00", len(docs))
	for _, doc := range docs {
		fmt.Fprintf(h, "%d\x00%s\x00", len(doc), doc)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
