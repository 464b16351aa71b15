package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/kafka"
)

// Publisher sends a batch of events downstream.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector buffers events and publishes them in batches, when batchSize
// events are waiting or every flushInterval. Track never blocks: when the
// buffer is full the event is dropped.
type Collector struct {
	publisher     Publisher
	eventCh       chan SearchEvent
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	done          chan struct{}

	// sendMu guards eventCh against Track racing Close.
	sendMu sync.RWMutex
	closed bool

	mu        sync.Mutex
	published int64
	dropped   int64
	failed    int64
}

func NewCollector(publisher Publisher, bufferSize, batchSize int, flushInterval time.Duration) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	return &Collector{
		publisher:     publisher,
		eventCh:       make(chan SearchEvent, bufferSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        slog.Default().With("component", "analytics-collector"),
		done:          make(chan struct{}),
	}
}

// Start runs the publish loop until Close is called or ctx is done.
func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
	c.logger.Info("analytics collector started",
		"buffer_size", cap(c.eventCh),
		"batch_size", c.batchSize,
		"flush_interval", c.flushInterval,
	)
}

// Track queues event for publishing. Events tracked after Close are
// counted as dropped.
func (c *Collector) Track(event SearchEvent) {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()
	if c.closed {
		c.drop("collector closed")
		return
	}
	select {
	case c.eventCh <- event:
	default:
		c.drop("buffer full")
	}
}

func (c *Collector) drop(reason string) {
	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()
	c.logger.Warn("analytics event dropped", "reason", reason)
}

// Close stops accepting events, publishes what is buffered and waits for
// the loop to exit. It is safe to call more than once.
func (c *Collector) Close() {
	c.sendMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.eventCh)
	}
	c.sendMu.Unlock()
	<-c.done
}

// Counts reports published, dropped and failed event totals.
func (c *Collector) Counts() (published, dropped, failed int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.published, c.dropped, c.failed
}

func (c *Collector) run(ctx context.Context) {
	defer close(c.done)
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				c.flush(context.Background(), batch)
				return
			}
			batch = append(batch, kafka.Event{Key: partitionKey(event), Value: event})
			if len(batch) >= c.batchSize {
				c.flush(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			c.flush(ctx, batch)
			batch = batch[:0]
		case <-ctx.Done():
			for event := range drain(c.eventCh) {
				batch = append(batch, kafka.Event{Key: partitionKey(event), Value: event})
			}
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			c.flush(flushCtx, batch)
			cancel()
			return
		}
	}
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) {
	if len(batch) == 0 {
		return
	}
	err := c.publisher.PublishBatch(ctx, batch)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failed += int64(len(batch))
		c.logger.Error("analytics batch publish failed", "events", len(batch), "error", err)
		return
	}
	c.published += int64(len(batch))
}

func partitionKey(event SearchEvent) string {
	if event.RunID != "" {
		return event.RunID
	}
	return event.RequestID
}

// drain yields whatever is already buffered in ch without blocking.
func drain(ch <-chan SearchEvent) func(func(SearchEvent) bool) {
	return func(yield func(SearchEvent) bool) {
		for {
			select {
			case event, ok := <-ch:
				if !ok || !yield(event) {
					return
				}
			default:
				return
			}
		}
	}
}
