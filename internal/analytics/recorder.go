package analytics

import (
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/metrics"
)

// Recorder fans a search event out to the aggregator, the Kafka collector
// and the Prometheus metrics. Collector and metrics are optional.
type Recorder struct {
	aggregator *Aggregator
	collector  *Collector
	metrics    *metrics.Metrics
}

func NewRecorder(aggregator *Aggregator, collector *Collector, m *metrics.Metrics) *Recorder {
	return &Recorder{aggregator: aggregator, collector: collector, metrics: m}
}

func (r *Recorder) Record(event SearchEvent) {
	r.aggregator.Record(event)
	if r.metrics != nil {
		r.metrics.ObserveQuery(len(event.Terms), event.Returned, float64(event.LatencyUs)/1e6)
	}
	if r.collector != nil {
		r.collector.Track(event)
	}
}

// Observer adapts the recorder to the searcher's per-query callback, tagging
// every event with runID.
func (r *Recorder) Observer(runID string) func(searcher.Outcome) {
	return func(o searcher.Outcome) {
		event := NewSearchEvent(o.Result, o.Position, o.Latency, false)
		event.RunID = runID
		r.Record(event)
	}
}

func (r *Recorder) Stats() AggregatedStats {
	return r.aggregator.Stats()
}
