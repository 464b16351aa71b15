// Package executor runs one parsed query against a built index: it gathers
// the postings of every query term, forms the candidate set and ranks it.
package executor

import (
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/ranker"
)

type SearchResult struct {
	Query     string                 `json:"query"`
	Terms     []string               `json:"terms"`
	TotalHits int                    `json:"total_hits"`
	Results   []ranker.RelativeIndex `json:"results"`
	TermStats map[string]int         `json:"term_stats"`
}

type Executor struct {
	index index.Reader
}

func New(idx index.Reader) *Executor {
	return &Executor{index: idx}
}

// Execute ranks the documents matching at least one term of plan and keeps
// the best limit of them. It never fails: a plan without terms, or whose
// terms match nothing, yields an empty result list.
func (e *Executor) Execute(plan *parser.QueryPlan, limit int) *SearchResult {
	result := &SearchResult{
		Query:     plan.RawQuery,
		Terms:     plan.Terms,
		Results:   []ranker.RelativeIndex{},
		TermStats: make(map[string]int),
	}
	if plan.Empty() {
		return result
	}

	postingsPerTerm := make(map[string]index.PostingList, len(plan.Terms))
	for _, term := range plan.Terms {
		if !e.index.Contains(term) {
			continue
		}
		postings := e.index.Lookup(term)
		postingsPerTerm[term] = postings
		result.TermStats[term] = len(postings)
	}
	if len(postingsPerTerm) == 0 {
		return result
	}

	result.TotalHits = len(unionPostings(postingsPerTerm))
	result.Results = ranker.Rank(postingsPerTerm, limit)
	return result
}

func unionPostings(postingsPerTerm map[string]index.PostingList) map[int]struct{} {
	result := make(map[int]struct{})
	for _, postings := range postingsPerTerm {
		for _, p := range postings {
			result[p.DocID] = struct{}{}
		}
	}
	return result
}
