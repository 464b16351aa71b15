package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/parser"
)

func buildIndex(b *testing.B) *index.MemoryIndex {
	b.Helper()
	idx := index.New()
	idx.Build(syntheticCorpus(10000, 100))
	return idx
}

func queries(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s %s %s",
			vocabulary[i%len(vocabulary)],
			vocabulary[(i*7+3)%len(vocabulary)],
			vocabulary[(i*13+5)%len(vocabulary)],
		)
	}
	return out
}

func BenchmarkExecuteSingleQuery(b *testing.B) {
	exec := executor.New(buildIndex(b))
	plan := parser.Parse("distributed search ranking")

	b.ReportAllocs()
	for b.Loop() {
		_ = exec.Execute(plan, 5)
	}
}

func BenchmarkSearchBatch(b *testing.B) {
	idx := buildIndex(b)
	batch := queries(200)

	for _, workers := range []int{1, 2, 4, 8} {
		s := searcher.New(idx, searcher.WithWorkers(workers))
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := s.Search(context.Background(), batch, 5); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkSearchLimits(b *testing.B) {
	s := searcher.New(buildIndex(b), searcher.WithWorkers(4))
	batch := queries(50)

	for _, limit := range []int{1, 5, 100} {
		b.Run(fmt.Sprintf("limit_%d", limit), func(b *testing.B) {
			for b.Loop() {
				if _, err := s.Search(context.Background(), batch, limit); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
