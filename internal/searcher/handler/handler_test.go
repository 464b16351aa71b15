package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/ranker"
	pkgredis "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/redis"
)

type memStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, pkgredis.ErrCacheMiss
}

func (m *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memStore) DeletePrefix(_ context.Context, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	clear(m.data)
	return n, nil
}

type fixture struct {
	server   *httptest.Server
	recorder *analytics.Recorder
}

func newFixture(t *testing.T, withCache bool) *fixture {
	t.Helper()
	engine := indexer.NewEngine()
	engine.Build(context.Background(), []string{
		"the cat sat on the mat",
		"the dog sat on the log",
		"cat cat cat",
	})
	recorder := analytics.NewRecorder(analytics.NewAggregator(), nil, nil)
	s := searcher.New(engine.Index(), searcher.WithWorkers(2), searcher.WithObserver(recorder.Observer("")))

	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(&memStore{data: make(map[string][]byte)}, time.Minute, engine.Fingerprint(), nil)
	}
	h := New(engine, s, qc, recorder, 2, 10)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &fixture{server: srv, recorder: recorder}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestSearch(t *testing.T) {
	f := newFixture(t, false)

	var result executor.SearchResult
	status := getJSON(t, f.server.URL+"/api/v1/search?q=Cat", &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Cat", result.Query)
	assert.Equal(t, []string{"cat"}, result.Terms)
	assert.Equal(t, 2, result.TotalHits)
	assert.Equal(t, []ranker.RelativeIndex{{DocID: 2, Rank: 1}, {DocID: 0, Rank: 1.0 / 3.0}}, result.Results)
}

func TestSearchLimit(t *testing.T) {
	f := newFixture(t, false)

	var result executor.SearchResult
	require.Equal(t, http.StatusOK, getJSON(t, f.server.URL+"/api/v1/search?q=the+sat&limit=1", &result))
	assert.Len(t, result.Results, 1)
	assert.Equal(t, 2, result.TotalHits)

	require.Equal(t, http.StatusOK, getJSON(t, f.server.URL+"/api/v1/search?q=the+sat+cat&limit=500", &result))
	assert.Len(t, result.Results, 3)
}

func TestSearchBadRequests(t *testing.T) {
	f := newFixture(t, false)
	tests := []struct {
		name  string
		query string
	}{
		{"missing q", ""},
		{"zero limit", "?q=cat&limit=0"},
		{"negative limit", "?q=cat&limit=-3"},
		{"non-numeric limit", "?q=cat&limit=many"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var body map[string]string
			status := getJSON(t, f.server.URL+"/api/v1/search"+tc.query, &body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSearchWithoutTerms(t *testing.T) {
	f := newFixture(t, false)
	var result executor.SearchResult
	require.Equal(t, http.StatusOK, getJSON(t, f.server.URL+"/api/v1/search?q=123+!!", &result))
	assert.Empty(t, result.Results)
	assert.Equal(t, int64(1), f.recorder.Stats().EmptyQueries)
}

func TestSearchUsesCache(t *testing.T) {
	f := newFixture(t, true)

	var first, second executor.SearchResult
	getJSON(t, f.server.URL+"/api/v1/search?q=dog+cat", &first)
	getJSON(t, f.server.URL+"/api/v1/search?q=CAT,+dog", &second)

	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, "CAT, dog", second.Query)

	var stats map[string]any
	getJSON(t, f.server.URL+"/api/v1/cache/stats", &stats)
	assert.Equal(t, 1.0, stats["hits"])
	assert.Equal(t, 1.0, stats["misses"])
	assert.Equal(t, "closed", stats["circuit"])
	assert.Equal(t, int64(1), f.recorder.Stats().CacheHits)

	resp, err := http.Post(f.server.URL+"/api/v1/cache/invalidate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCacheEndpointsDisabled(t *testing.T) {
	f := newFixture(t, false)

	var stats map[string]string
	getJSON(t, f.server.URL+"/api/v1/cache/stats", &stats)
	assert.Equal(t, "disabled", stats["status"])

	resp, err := http.Post(f.server.URL+"/api/v1/cache/invalidate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestBatch(t *testing.T) {
	f := newFixture(t, false)

	body := `{"requests": ["cat", "zzz", "dog", 7, "the"], "limit": 1}`
	resp, err := http.Post(f.server.URL+"/api/v1/search/batch", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got map[string]map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	answers := got["answers"]
	require.Len(t, answers, 4)
	assert.Equal(t, map[string]any{"result": true, "docid": 2.0, "rank": 1.0}, answers["request001"])
	assert.Equal(t, map[string]any{"result": false}, answers["request002"])
	assert.Equal(t, map[string]any{"result": true, "docid": 1.0, "rank": 1.0}, answers["request003"])
	assert.Equal(t, map[string]any{"result": true, "docid": 0.0, "rank": 1.0}, answers["request004"])
	assert.Equal(t, int64(4), f.recorder.Stats().TotalSearches)
}

func TestBatchBadBody(t *testing.T) {
	f := newFixture(t, false)
	for _, body := range []string{
		`not json`,
		`{"requests": ["a"], "limit": -1}`,
		`{"requests": ["a"], "limit": 0}`,
		`{"requests": ["a"], "limit": "abc"}`,
		`{"requests": ["a"], "limit": 2.5}`,
		`{"requests": ["a"], "limit": true}`,
	} {
		resp, err := http.Post(f.server.URL+"/api/v1/search/batch", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestBatchDefaultLimit(t *testing.T) {
	f := newFixture(t, false)

	for _, body := range []string{`{"requests": ["the"]}`, `{"requests": ["the"], "limit": null}`} {
		resp, err := http.Post(f.server.URL+"/api/v1/search/batch", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		var got map[string]map[string]map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		resp.Body.Close()
		assert.Contains(t, got["answers"]["request001"], "relevance", body)
	}
}

func TestIndexStats(t *testing.T) {
	f := newFixture(t, false)
	var stats map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, f.server.URL+"/api/v1/index/stats", &stats))
	assert.Equal(t, map[string]any{"document_count": 3.0, "term_count": 7.0, "posting_count": 11.0}, stats["stats"])
	assert.NotEmpty(t, stats["fingerprint"])
}

func TestIndexStatsBeforeBuild(t *testing.T) {
	engine := indexer.NewEngine()
	h := New(engine, searcher.New(engine.Index()), nil, nil, 5, 10)
	rec := httptest.NewRecorder()
	h.IndexStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/index/stats", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
