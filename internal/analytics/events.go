// Package analytics records what happens to every query: it aggregates the
// events in process and, when Kafka is configured, streams them to a topic.
package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/executor"
)

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventEmptyQuery EventType = "empty_query"
	EventCacheHit   EventType = "cache_hit"
)

type SearchEvent struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Position  int       `json:"position"`
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyUs int64     `json:"latency_us"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSearchEvent describes one answered query.
func NewSearchEvent(result *executor.SearchResult, position int, latency time.Duration, cacheHit bool) SearchEvent {
	event := SearchEvent{
		Type:      EventSearch,
		Position:  position,
		Query:     result.Query,
		Terms:     result.Terms,
		TotalHits: result.TotalHits,
		Returned:  len(result.Results),
		LatencyUs: latency.Microseconds(),
		CacheHit:  cacheHit,
		Timestamp: time.Now().UTC(),
	}
	switch {
	case len(result.Terms) == 0:
		event.Type = EventEmptyQuery
	case cacheHit:
		event.Type = EventCacheHit
	case result.TotalHits == 0:
		event.Type = EventZeroResult
	}
	return event
}
