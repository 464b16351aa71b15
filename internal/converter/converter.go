// Package converter reads search requests from, and writes answers to, the
// JSON interchange files exchanged with the outside world.
//
// requests.json:
//
//	{"requests": ["milk water", "sugar"]}
//
// answers.json:
//
//	{"answers": {
//	    "request001": {"result": true, "relevance": [{"docid": 2, "rank": 1}, {"docid": 0, "rank": 0.7}]},
//	    "request002": {"result": true, "docid": 1, "rank": 1},
//	    "request003": {"result": false}
//	}}
package converter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/errors"
)

// Answer is the serialised outcome of one request. A single hit is written
// inline (DocID/Rank), several hits as Relevance.
type Answer struct {
	Result    bool                   `json:"result"`
	DocID     *int                   `json:"docid,omitempty"`
	Rank      *float64               `json:"rank,omitempty"`
	Relevance []ranker.RelativeIndex `json:"relevance,omitempty"`
}

// Answers is the top-level answers document.
type Answers struct {
	Answers map[string]Answer `json:"answers"`
}

type requestsFile struct {
	Requests []json.RawMessage `json:"requests"`
}

// ReadRequests loads the request list from path. Entries that are not
// strings, or are empty, are skipped.
func ReadRequests(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("reading requests %s: %w", path, apperrors.ErrFileNotFound)
		}
		return nil, fmt.Errorf("reading requests %s: %w", path, err)
	}
	return ParseRequests(data)
}

// ParseRequests decodes a requests document.
func ParseRequests(data []byte) ([]string, error) {
	var file requestsFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decoding requests: %v", apperrors.ErrInvalidInput, err)
	}
	requests := make([]string, 0, len(file.Requests))
	for i, raw := range file.Requests {
		var request string
		if err := json.Unmarshal(raw, &request); err != nil {
			slog.Warn("skipping non-string request", "position", i)
			continue
		}
		if request == "" {
			continue
		}
		requests = append(requests, request)
	}
	return requests, nil
}

// RequestID names the answer for the request at position i (zero-based).
func RequestID(i int) string {
	return fmt.Sprintf("request%03d", i+1)
}

// BuildAnswers turns ranked results into the answers document, keeping at
// most limit entries per request. A limit <= 0 keeps everything.
func BuildAnswers(results [][]ranker.RelativeIndex, limit int) Answers {
	doc := Answers{Answers: make(map[string]Answer, len(results))}
	for i, list := range results {
		if limit > 0 && len(list) > limit {
			list = list[:limit]
		}
		var answer Answer
		switch len(list) {
		case 0:
			answer.Result = false
		case 1:
			docID, rank := list[0].DocID, list[0].Rank
			answer = Answer{Result: true, DocID: &docID, Rank: &rank}
		default:
			answer = Answer{Result: true, Relevance: list}
		}
		doc.Answers[RequestID(i)] = answer
	}
	return doc
}

// WriteAnswers serialises results to path, replacing the file atomically.
func WriteAnswers(path string, results [][]ranker.RelativeIndex, limit int) error {
	data, err := json.MarshalIndent(BuildAnswers(results, limit), "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling answers: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating answers directory: %w", err)
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing answers: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming answers file: %w", err)
	}
	return nil
}
