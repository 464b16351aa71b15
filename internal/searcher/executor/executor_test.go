package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/ranker"
)

func newExecutor(t *testing.T, docs ...string) *Executor {
	t.Helper()
	idx := index.New()
	idx.Build(docs)
	return New(idx)
}

func TestExecuteScenarios(t *testing.T) {
	exec := newExecutor(t, "the cat sat on the mat", "the dog sat on the log")

	tests := []struct {
		name  string
		query string
		limit int
		want  []ranker.RelativeIndex
	}{
		{"disjoint terms tie", "cat dog", 5, []ranker.RelativeIndex{{DocID: 0, Rank: 1}, {DocID: 1, Rank: 1}}},
		{"shared term truncated", "the", 1, []ranker.RelativeIndex{{DocID: 0, Rank: 1}}},
		{"absent term", "zzz", 5, []ranker.RelativeIndex{}},
		{"empty query", "", 5, []ranker.RelativeIndex{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := exec.Execute(parser.Parse(tc.query), tc.limit)
			assert.Equal(t, tc.want, got.Results)
		})
	}
}

func TestExecuteWeightsByTermFrequency(t *testing.T) {
	exec := newExecutor(t,
		"milk milk water water",
		"milk water",
		"milk milk milk milk milk milk milk milk water water water water water water water water",
		"sugar",
	)

	got := exec.Execute(parser.Parse("milk water"), 5)
	require.Len(t, got.Results, 3)
	assert.Equal(t, 2, got.Results[0].DocID)
	assert.InDelta(t, 1.0, got.Results[0].Rank, 0.001)
	assert.Equal(t, 0, got.Results[1].DocID)
	assert.InDelta(t, 0.25, got.Results[1].Rank, 0.001)
	assert.Equal(t, 1, got.Results[2].DocID)
	assert.InDelta(t, 0.125, got.Results[2].Rank, 0.001)
	assert.Equal(t, 3, got.TotalHits)
	assert.Equal(t, map[string]int{"milk": 3, "water": 3}, got.TermStats)
}

func TestExecuteDuplicateQueryTermsCountOnce(t *testing.T) {
	exec := newExecutor(t, "apple banana", "apple apple")

	once := exec.Execute(parser.Parse("banana apple"), 5)
	twice := exec.Execute(parser.Parse("banana banana apple"), 5)
	assert.Equal(t, once.Results, twice.Results)
	// doc0: 1+1, doc1: 2
	assert.Equal(t, []ranker.RelativeIndex{{DocID: 0, Rank: 1}, {DocID: 1, Rank: 1}}, once.Results)
}

func TestExecuteLimitNeverExceedsCandidates(t *testing.T) {
	exec := newExecutor(t, "one", "one two", "three")

	got := exec.Execute(parser.Parse("one"), 10)
	assert.Len(t, got.Results, 2)
	assert.Equal(t, 2, got.TotalHits)
}

func TestExecuteOnEmptyIndex(t *testing.T) {
	exec := newExecutor(t)
	got := exec.Execute(parser.Parse("anything"), 5)
	assert.Empty(t, got.Results)
	assert.Zero(t, got.TotalHits)
}
