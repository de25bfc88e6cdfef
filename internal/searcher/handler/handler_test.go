package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/help-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/resilience"
)

func newEngine(t *testing.T) *helpsearch.Engine {
	t.Helper()
	cfg := config.DefaultSearchConfig()
	cfg.DefaultLanguage = "en"
	engine, err := helpsearch.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	engine.IndexContent([]helpsearch.ContentItem{
		{ID: "a", Title: "Bubble Types", Content: "There are many kinds of bubble", Tags: []string{"bubbles"}, Category: "gameplay"},
		{ID: "b", Title: "Bubble Basics", Content: "Pop them", Difficulty: helpsearch.Advanced},
	}, "help")
	return engine
}

func newServer(t *testing.T, resultCache *cache.ResultCache) (*http.ServeMux, *helpsearch.Engine, *prometheus.Registry) {
	t.Helper()
	engine := newEngine(t)
	reg := prometheus.NewRegistry()
	mux := http.NewServeMux()
	New(engine, resultCache, metrics.New(reg)).Register(mux)
	return mux, engine, reg
}

func get(t *testing.T, h http.Handler, target string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", target, err)
		}
	}
	return rec.Code
}

func TestSearch(t *testing.T) {
	mux, _, _ := newServer(t, nil)

	var res helpsearch.Result
	if code := get(t, mux, "/api/v1/search?q=bubble", &res); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(res.Results) != 2 || res.Results[0].Document.ID != "a" {
		t.Errorf("results = %+v", res.Results)
	}
	if res.Metadata.Query != "bubble" {
		t.Errorf("metadata = %+v", res.Metadata)
	}
}

func TestSearchOptionsFromQueryString(t *testing.T) {
	mux, _, _ := newServer(t, nil)

	tests := []struct {
		target string
		want   []string
	}{
		{"/api/v1/search?q=bubble&difficulty=advanced", []string{"b"}},
		{"/api/v1/search?q=bubble&tags=bubbles,%20other", []string{"a"}},
		{"/api/v1/search?q=bubble&category=gameplay", []string{"a"}},
		{"/api/v1/search?q=bubble&limit=1", []string{"a"}},
		{"/api/v1/search?q=bubble&type=faq", []string{}},
		{"/api/v1/search?q=bubble&lang=ja", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			var res helpsearch.Result
			if code := get(t, mux, tt.target, &res); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			if len(res.Results) != len(tt.want) {
				t.Fatalf("got %d results, want %v", len(res.Results), tt.want)
			}
			for i, id := range tt.want {
				if res.Results[i].Document.ID != id {
					t.Errorf("result %d = %s, want %s", i, res.Results[i].Document.ID, id)
				}
			}
		})
	}
}

func TestSearchRejections(t *testing.T) {
	mux, engine, _ := newServer(t, nil)

	tests := []struct {
		target  string
		counted bool
	}{
		{"/api/v1/search?q=a", true},
		{"/api/v1/search", true},
		{"/api/v1/search?q=bubble&sort=alphabetical", true},
		{"/api/v1/search?q=bubble&difficulty=expert", true},
		{"/api/v1/search?q=bubble&limit=0", false},
		{"/api/v1/search?q=bubble&limit=ten", false},
		{"/api/v1/search?q=bubble&fuzzy=maybe", false},
	}
	var counted int64
	for _, tt := range tests {
		var body map[string]any
		if code := get(t, mux, tt.target, &body); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.target, code)
		}
		if body["error"] == "" || body["error"] == nil {
			t.Errorf("%s: no error message in %v", tt.target, body)
		}
		if tt.counted {
			counted++
		}
	}
	if got := engine.Statistics().TotalSearches; got != counted {
		t.Errorf("TotalSearches = %d, want %d", got, counted)
	}
}

func TestSearchWithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	resultCache := cache.New(client, time.Minute, breaker, nil)
	mux, engine, _ := newServer(t, resultCache)

	for i := 0; i < 2; i++ {
		var res helpsearch.Result
		if code := get(t, mux, "/api/v1/search?q=Bubble", &res); code != http.StatusOK || len(res.Results) != 2 {
			t.Fatalf("search %d: status %d, %d results", i, code, len(res.Results))
		}
	}
	if stats := resultCache.Stats(); stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("cache stats = %+v", stats)
	}
	if got := engine.Statistics().PopularQueries["Bubble"]; got != 2 {
		t.Errorf("cached search not counted: popular = %d", got)
	}

	var cs cache.Stats
	if code := get(t, mux, "/api/v1/cache/stats", &cs); code != http.StatusOK || cs.Hits != 1 {
		t.Errorf("cache stats endpoint = %d %+v", code, cs)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("invalidate status = %d", rec.Code)
	}
	if len(mr.Keys()) != 0 {
		t.Errorf("keys left after invalidate: %v", mr.Keys())
	}
}

func TestCacheEndpointsWhenDisabled(t *testing.T) {
	mux, _, _ := newServer(t, nil)
	var body map[string]string
	if code := get(t, mux, "/api/v1/cache/stats", &body); code != http.StatusOK || body["status"] != "disabled" {
		t.Errorf("cache stats = %d %v", code, body)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("invalidate status = %d", rec.Code)
	}
}

func TestSuggestions(t *testing.T) {
	mux, engine, _ := newServer(t, nil)
	engine.Search("bubble", helpsearch.Options{})

	var body struct {
		Suggestions []helpsearch.Suggestion `json:"suggestions"`
	}
	if code := get(t, mux, "/api/v1/suggestions?q=bub", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(body.Suggestions) == 0 || body.Suggestions[0].Text != "bubble" {
		t.Errorf("suggestions = %+v", body.Suggestions)
	}

	if code := get(t, mux, "/api/v1/suggestions?q=bub&popular=false&max=1", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(body.Suggestions) != 1 || body.Suggestions[0].Type == helpsearch.SuggestionPopular {
		t.Errorf("suggestions without popular = %+v", body.Suggestions)
	}

	for _, target := range []string{"/api/v1/suggestions?q=bub&max=0", "/api/v1/suggestions?q=bub&popular=perhaps"} {
		if code := get(t, mux, target, nil); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", target, code)
		}
	}
}

func TestStatsAndDocument(t *testing.T) {
	mux, engine, _ := newServer(t, nil)
	engine.Search("bubble", helpsearch.Options{})

	var stats helpsearch.Statistics
	if code := get(t, mux, "/api/v1/stats", &stats); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if stats.TotalSearches != 1 || stats.Index.TotalContentItems != 2 {
		t.Errorf("stats = %+v", stats)
	}

	var doc helpsearch.Document
	if code := get(t, mux, "/api/v1/content/b", &doc); code != http.StatusOK || doc.Title != "Bubble Basics" {
		t.Errorf("document = %d %+v", code, doc)
	}
	if code := get(t, mux, "/api/v1/content/zzz", nil); code != http.StatusNotFound {
		t.Errorf("missing document status = %d", code)
	}
}

func TestConcurrentCachedSearchesAreAllCounted(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	mux, engine, _ := newServer(t, cache.New(client, time.Minute, breaker, nil))

	const requests = 20
	var wg sync.WaitGroup
	codes := make([]int, requests)
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=bubble", nil))
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("request %d: status %d", i, code)
		}
	}
	stats := engine.Statistics()
	if stats.TotalSearches != requests || stats.PopularQueries["bubble"] != requests {
		t.Errorf("counted %d searches (%d for bubble), want %d", stats.TotalSearches, stats.PopularQueries["bubble"], requests)
	}
}
