// Package parser turns a raw query string into the set of normalised terms
// used for lookup and scoring.
package parser

import (
	"slices"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/tokenizer"
)

// QueryPlan is the normalised form of a query. Terms holds each distinct
// term once, sorted.
type QueryPlan struct {
	Terms    []string
	RawQuery string
}

func Parse(query string) *QueryPlan {
	terms := tokenizer.Tokenize(query)
	slices.Sort(terms)
	return &QueryPlan{
		Terms:    slices.Compact(terms),
		RawQuery: query,
	}
}

// Empty reports whether the query normalised to no terms at all.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0
}
