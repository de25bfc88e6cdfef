// Package handler serves the search, suggestion, statistics and cache
// endpoints over the help search engine.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/help-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/tracing"
)

type Handler struct {
	engine     *helpsearch.Engine
	cache      *cache.ResultCache
	metrics    *metrics.Metrics
	timeout    time.Duration
	maxResults int
	logger     *slog.Logger
}

// New creates the handler. resultCache and m may be nil.
func New(engine *helpsearch.Engine, resultCache *cache.ResultCache, m *metrics.Metrics) *Handler {
	cfg := engine.Config()
	return &Handler{
		engine:     engine,
		cache:      resultCache,
		metrics:    m,
		timeout:    cfg.SearchTimeout,
		maxResults: cfg.MaxResults,
		logger:     slog.Default().With("component", "search-handler"),
	}
}

// Register adds the read routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/suggestions", h.Suggestions)
	mux.HandleFunc("GET /api/v1/stats", h.Stats)
	mux.HandleFunc("GET /api/v1/content/{id}", h.Document)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Search answers GET /api/v1/search?q=...&lang=&category=&tags=a,b
// &difficulty=&type=&fuzzy=&limit=&sort=.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, span := tracing.Start(r.Context(), "search")
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	params := r.URL.Query()
	query := params.Get("q")
	opts, err := h.parseOptions(params)
	if err != nil {
		h.countSearch(metrics.OutcomeRejected)
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	compute := func() (*helpsearch.Result, error) {
		return resilience.Call(ctx, h.timeout, "search", func(ctx context.Context) (*helpsearch.Result, error) {
			_, engineSpan := tracing.Start(ctx, "engine")
			defer engineSpan.End()
			result := h.engine.Search(query, opts)
			engineSpan.Set("total_count", result.TotalCount)
			return result, nil
		})
	}

	var result *helpsearch.Result
	source := cache.SourceComputed
	cacheStatus := "disabled"
	if h.cache != nil {
		result, source, err = h.cache.GetOrCompute(ctx, query, opts, compute)
		cacheStatus = string(source)
	} else {
		result, err = compute()
	}

	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, apperrors.ErrTimeout) {
			outcome = metrics.OutcomeTimeout
		}
		h.countSearch(outcome)
		log.Error("search failed", "query", query, "error", err)
		h.writeError(w, apperrors.HTTPStatusCode(err), "search failed")
		return
	}
	// Only the caller that ran compute went through Search, which counts
	// itself.
	if source != cache.SourceComputed {
		h.engine.RecordSearch(query, time.Since(start))
	}

	status := http.StatusOK
	switch {
	case result.Err != nil:
		status = apperrors.HTTPStatusCode(result.Err)
		if status == http.StatusBadRequest {
			h.countSearch(metrics.OutcomeRejected)
		} else {
			h.countSearch(metrics.OutcomeError)
		}
	case len(result.Results) == 0:
		h.countSearch(metrics.OutcomeZeroResults)
	default:
		h.countSearch(metrics.OutcomeResults)
	}
	if h.metrics != nil {
		h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
		h.metrics.SearchResultsCount.Observe(float64(len(result.Results)))
	}

	span.Set("query", query, "cache", cacheStatus, "status", status)
	log.Info("search completed",
		"query", query,
		"status", status,
		"total_count", result.TotalCount,
		"returned", len(result.Results),
		"cache", cacheStatus,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, status, result)
}

// Suggestions answers GET /api/v1/suggestions?q=...&max=&popular=&lang=.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	opts := helpsearch.SuggestionOptions{Language: params.Get("lang")}
	if v := params.Get("max"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.writeError(w, http.StatusBadRequest, "max must be a positive integer")
			return
		}
		opts.MaxSuggestions = n
	}
	if v := params.Get("popular"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "popular must be a boolean")
			return
		}
		opts.IncludePopular = helpsearch.Bool(b)
	}

	suggestions := h.engine.GetSuggestions(params.Get("q"), opts)
	if h.metrics != nil {
		h.metrics.SuggestionsTotal.Inc()
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Statistics())
}

// Document returns one indexed document by ID.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.engine.Document(r.PathValue("id"))
	if !ok {
		h.writeError(w, http.StatusNotFound, "content not found")
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keysDeleted": deleted})
}

// parseOptions reads search options from the query string. Values the
// engine validates itself (sort, difficulty) are passed through.
func (h *Handler) parseOptions(params url.Values) (helpsearch.Options, error) {
	opts := helpsearch.Options{
		Language:    params.Get("lang"),
		Category:    params.Get("category"),
		Difficulty:  helpsearch.Difficulty(params.Get("difficulty")),
		ContentType: params.Get("type"),
		SortBy:      ranker.Order(params.Get("sort")),
	}
	if v := params.Get("tags"); v != "" {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				opts.Tags = append(opts.Tags, tag)
			}
		}
	}
	if v := params.Get("fuzzy"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, errors.New("fuzzy must be a boolean")
		}
		opts.FuzzySearch = helpsearch.Bool(b)
	}
	if v := params.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, errors.New("limit must be a positive integer")
		}
		opts.MaxResults = min(n, h.maxResults)
	}
	return opts, nil
}

func (h *Handler) countSearch(outcome string) {
	if h.metrics != nil {
		h.metrics.SearchRequestsTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
