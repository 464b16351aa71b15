// Package ranker scores candidate documents by summing the occurrence counts
// of the query terms they contain, then orders and rescales the result.
package ranker

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer/index"
)

// RelativeIndex is a ranked document with its score rescaled to [0, 1].
type RelativeIndex struct {
	DocID int     `json:"docid"`
	Rank  float64 `json:"rank"`
}

type scoredDoc struct {
	docID int
	score int
}

// Rank scores every document found in postingsPerTerm, sorts by raw score
// descending with ties on ascending document id, divides each score by the
// top score and finally keeps the first limit entries. A limit <= 0 keeps
// everything. The top score is taken over all candidates, before truncation.
func Rank(postingsPerTerm map[string]index.PostingList, limit int) []RelativeIndex {
	scores := make(map[int]int)
	for _, postings := range postingsPerTerm {
		for _, posting := range postings {
			scores[posting.DocID] += posting.Count
		}
	}

	docs := make([]scoredDoc, 0, len(scores))
	for docID, score := range scores {
		if score <= 0 {
			continue
		}
		docs = append(docs, scoredDoc{docID: docID, score: score})
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].score != docs[j].score {
			return docs[i].score > docs[j].score
		}
		return docs[i].docID < docs[j].docID
	})

	if len(docs) == 0 {
		return []RelativeIndex{}
	}
	maxScore := float64(docs[0].score)
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	result := make([]RelativeIndex, len(docs))
	for i, d := range docs {
		result[i] = RelativeIndex{
			DocID: d.docID,
			Rank:  float64(d.score) / maxScore,
		}
	}
	return result
}
