// Package cache keeps search results in Redis. Keys are derived from the
// normalised term set, the result limit and the corpus fingerprint, so
// queries that differ only in case, punctuation or term order share an
// entry, and a rebuilt corpus never serves stale results.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/resilience"
)

const keyPrefix = "search:"

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}

type QueryCache struct {
	store       Store
	ttl         time.Duration
	fingerprint string
	breaker     *resilience.CircuitBreaker
	group       singleflight.Group
	metrics     *metrics.Metrics
	logger      *slog.Logger
	hits        atomic.Int64
	misses      atomic.Int64
}

// New returns a cache over store for the corpus identified by fingerprint.
// m may be nil.
func New(store Store, ttl time.Duration, fingerprint string, m *metrics.Metrics) *QueryCache {
	breakerCfg := resilience.CircuitBreakerConfig{}
	if m != nil {
		breakerCfg.OnStateChange = func(_ string, _, to resilience.State) {
			if to == resilience.StateClosed {
				m.CacheCircuitOpen.Set(0)
			} else {
				m.CacheCircuitOpen.Set(1)
			}
		}
	}
	return &QueryCache{
		store:       store,
		ttl:         ttl,
		fingerprint: fingerprint,
		breaker:     resilience.NewCircuitBreaker("redis-cache", breakerCfg),
		metrics:     m,
		logger:      slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for terms and limit. Store failures count
// as misses.
func (c *QueryCache) Get(ctx context.Context, terms []string, limit int) (*executor.SearchResult, bool) {
	key := c.Key(terms, limit)
	var data []byte
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			return nil
		}
		return err
	})
	if err != nil || data == nil {
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.recordMiss()
		return nil, false
	}
	var result executor.SearchResult
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Warn("cache entry unreadable", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return &result, true
}

// Set stores result. Failures are logged and otherwise ignored.
func (c *QueryCache) Set(ctx context.Context, terms []string, limit int, result *executor.SearchResult) {
	key := c.Key(terms, limit)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result or runs compute once per key,
// however many callers ask concurrently. The bool reports a cache hit.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	terms []string,
	limit int,
	compute func() *executor.SearchResult,
) (*executor.SearchResult, bool) {
	if result, ok := c.Get(ctx, terms, limit); ok {
		return result, true
	}
	val, _, _ := c.group.Do(c.Key(terms, limit), func() (any, error) {
		result := compute()
		c.Set(ctx, terms, limit, result)
		return result, nil
	})
	return val.(*executor.SearchResult), false
}

// Invalidate drops every cached search result.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.DeletePrefix(ctx, keyPrefix)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Circuit reports the Redis circuit breaker state and how many calls it has
// refused.
func (c *QueryCache) Circuit() (state string, rejected int64) {
	return c.breaker.State().String(), c.breaker.Rejected()
}

// Key derives the cache key. terms must already be normalised, sorted and
// de-duplicated, as parser.Parse returns them.
func (c *QueryCache) Key(terms []string, limit int) string {
	raw := fmt.Sprintf("%s|limit=%d", strings.Join(terms, ","), limit)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%s:%x", keyPrefix, c.fingerprint, hash[:16])
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
