// Package index holds the in-memory inverted index: a mapping from
// normalised term to the documents containing it and how often.
//
// A MemoryIndex is built once from the whole corpus and is read-only
// afterwards. It does no locking: Build must not run while any reader is
// using the index.
package index

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/tokenizer"
)

// Reader is the read-only view of an index handed to query processing.
type Reader interface {
	Lookup(term string) PostingList
	Contains(term string) bool
	DocCount() int
}

type MemoryIndex struct {
	docs     []string
	index    map[string]PostingList
	postings int
}

func New() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]PostingList),
	}
}

// Build replaces the index contents with the given documents. The position
// of a document in docs is its id.
func (m *MemoryIndex) Build(docs []string) {
	m.docs = append([]string(nil), docs...)
	m.index = make(map[string]PostingList)
	m.postings = 0

	for docID, text := range m.docs {
		termCounts := make(map[string]int)
		for term := range tokenizer.Terms(text) {
			termCounts[term]++
		}
		for term, count := range termCounts {
			m.index[term] = append(m.index[term], Entry{
				DocID: docID,
				Count: count,
			})
		}
		m.postings += len(termCounts)
	}
}

// Lookup returns a copy of the postings stored for an already normalised
// term. Unknown terms yield an empty list.
func (m *MemoryIndex) Lookup(term string) PostingList {
	postings, exists := m.index[term]
	if !exists {
		return PostingList{}
	}
	result := make(PostingList, len(postings))
	copy(result, postings)
	return result
}

func (m *MemoryIndex) Contains(term string) bool {
	return len(m.index[term]) > 0
}

func (m *MemoryIndex) DocCount() int {
	return len(m.docs)
}

func (m *MemoryIndex) Stats() Stats {
	return Stats{
		DocumentCount: len(m.docs),
		TermCount:     len(m.index),
		PostingCount:  m.postings,
	}
}

// Snapshot returns every term with its postings, terms sorted and postings
// ordered by document id.
func (m *MemoryIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(m.index))
	for term := range m.index {
		postings := m.Lookup(term)
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].DocID < postings[j].DocID
		})
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}
