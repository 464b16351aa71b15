// Package handler serves the search HTTP API over an index built at
// start-up.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/converter"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/search-engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/search-engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/search-engine/pkg/middleware"
)

// maxBatchBody caps the batch request body.
const maxBatchBody = 4 << 20

type Handler struct {
	engine       *indexer.Engine
	searcher     *searcher.Searcher
	exec         *executor.Executor
	cache        *cache.QueryCache
	recorder     *analytics.Recorder
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New wires the handler. queryCache and recorder may be nil.
func New(
	engine *indexer.Engine,
	s *searcher.Searcher,
	queryCache *cache.QueryCache,
	recorder *analytics.Recorder,
	defaultLimit, maxResults int,
) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = searcher.DefaultMaxResponses
	}
	if maxResults < defaultLimit {
		maxResults = defaultLimit
	}
	return &Handler{
		engine:       engine,
		searcher:     s,
		exec:         executor.New(engine.Index()),
		cache:        queryCache,
		recorder:     recorder,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "search-handler"),
	}
}

// Register adds every search route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/search/batch", h.Batch)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query parameter 'q' is required"))
		return
	}
	limit, err := h.parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	plan := parser.Parse(query)
	if plan.Empty() {
		result := &executor.SearchResult{
			Query:     query,
			Terms:     []string{},
			Results:   []ranker.RelativeIndex{},
			TermStats: map[string]int{},
		}
		h.record(r, result, time.Since(start), false)
		h.writeJSON(w, http.StatusOK, result)
		return
	}

	var (
		result   *executor.SearchResult
		cacheHit bool
	)
	if h.cache != nil {
		cached, hit := h.cache.GetOrCompute(ctx, plan.Terms, limit, func() *executor.SearchResult {
			return h.exec.Execute(plan, limit)
		})
		// The entry may have been stored for a differently spelled query.
		copied := *cached
		copied.Query = query
		result, cacheHit = &copied, hit
	} else {
		result = h.exec.Execute(plan, limit)
	}
	latency := time.Since(start)

	log.Info("search completed",
		"query", query,
		"total_hits", result.TotalHits,
		"returned", len(result.Results),
		"cache_hit", cacheHit,
		"latency_us", latency.Microseconds(),
	)
	h.record(r, result, latency, cacheHit)
	h.writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Limit *int `json:"limit"`
}

// Batch answers a requests document with an answers document, the same
// shapes the batch command reads and writes.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBody+1))
	if err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "reading request body"))
		return
	}
	if len(body) > maxBatchBody {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "request body too large"))
		return
	}
	requests, err := converter.ParseRequests(body)
	if err != nil {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "body must be {\"requests\": [...]}"))
		return
	}
	var req batchRequest
	if err := json.Unmarshal(body, &req); err != nil || (req.Limit != nil && *req.Limit < 1) {
		h.writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer"))
		return
	}
	limit := h.defaultLimit
	if req.Limit != nil {
		limit = min(*req.Limit, h.maxResults)
	}

	results, err := h.searcher.Search(ctx, requests, limit)
	if err != nil {
		h.writeError(w, apperrors.Newf(apperrors.ErrTimeout, http.StatusServiceUnavailable, "batch aborted: %v", err))
		return
	}
	logger.FromContext(ctx).Info("batch completed", "requests", len(requests), "limit", limit)
	h.writeJSON(w, http.StatusOK, converter.BuildAnswers(results, limit))
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Ready() {
		h.writeError(w, apperrors.New(apperrors.ErrIndexNotReady, http.StatusServiceUnavailable, "index not built"))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"stats":       h.engine.Index().Stats(),
		"fingerprint": h.engine.Fingerprint(),
		"built_at":    h.engine.BuiltAt().UTC().Format(time.RFC3339),
		"workers":     h.searcher.Workers(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	circuit, rejected := h.cache.Circuit()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":             hits,
		"misses":           misses,
		"total":            total,
		"hit_rate":         fmt.Sprintf("%.1f%%", hitRate),
		"circuit":          circuit,
		"circuit_rejected": rejected,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, fmt.Errorf("%w: cache invalidation failed", apperrors.ErrInternal))
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) parseLimit(raw string) (int, error) {
	if raw == "" {
		return h.defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "limit must be a positive integer")
	}
	return min(n, h.maxResults), nil
}

func (h *Handler) record(r *http.Request, result *executor.SearchResult, latency time.Duration, cacheHit bool) {
	if h.recorder == nil {
		return
	}
	event := analytics.NewSearchEvent(result, 0, latency, cacheHit)
	event.RequestID = middleware.GetRequestID(r.Context())
	h.recorder.Record(event)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": message})
}
