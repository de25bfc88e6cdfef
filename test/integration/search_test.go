// Package integration wires the search service the way cmd/searcher does,
// with the HTTP middleware chain, the Redis result cache (on miniredis) and
// the Kafka content-event handler, and exercises it over httptest.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion"
	ingesthandler "github.com/Adithya-Monish-Kumar-K/help-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/help-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/resilience"
)

type stack struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	engine *helpsearch.Engine
	apply  kafka.MessageHandler
}

func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := config.DefaultSearchConfig()
	cfg.DefaultLanguage = "en"
	engine, err := helpsearch.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	m := metrics.New(prometheus.NewRegistry())
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	resultCache := cache.New(client, time.Minute, breaker, m, cache.WithGeneration(engine.Generation))
	ix := indexer.New(engine, resultCache, m)

	checker := health.NewChecker()
	checker.Register("redis", health.PingCheck(client.Ping, false))

	mux := http.NewServeMux()
	handler.New(engine, resultCache, m).Register(mux)
	ingesthandler.New(ix, nil, nil).Register(mux)
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	srv := httptest.NewServer(middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging,
		middleware.Recover,
		middleware.Timeout(5*time.Second),
		middleware.Metrics(m),
	))
	t.Cleanup(srv.Close)

	return &stack{server: srv, redis: mr, engine: engine, apply: consumer.HandleMessage(ix, m)}
}

func (s *stack) get(t *testing.T, path string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(s.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s: %v", path, err)
		}
	}
	return resp
}

func (s *stack) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(s.server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	resp.Body.Close()
	return resp
}

func TestContentLifecycleOverHTTP(t *testing.T) {
	s := newStack(t)

	resp := s.post(t, "/api/v1/content", `{"contentType":"faq","items":[
		{"id":"faq-1","question":"How do I pop bubbles?","answer":"Tap a bubble to pop it.","tags":["bubbles"]},
		{"id":"faq-2","question":"What is a combo?","answer":"Popping bubbles in a chain."}
	]}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert status = %d", resp.StatusCode)
	}

	var res helpsearch.Result
	resp = s.get(t, "/api/v1/search?q=bubbles", &res)
	if resp.Header.Get(middleware.RequestIDHeader) == "" {
		t.Error("response lacks a request id")
	}
	if res.TotalCount != 2 {
		t.Fatalf("totalCount = %d, want 2", res.TotalCount)
	}
	if len(s.redis.Keys()) != 1 {
		t.Errorf("cached keys = %v, want one result", s.redis.Keys())
	}

	// a write invalidates cached results
	if resp := s.post(t, "/api/v1/content", `{"contentType":"faq","items":[{"id":"faq-3","question":"Where are bubbles saved?"}]}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("second upsert status = %d", resp.StatusCode)
	}
	if len(s.redis.Keys()) != 0 {
		t.Errorf("cache not invalidated: %v", s.redis.Keys())
	}
	s.get(t, "/api/v1/search?q=bubbles", &res)
	if res.TotalCount != 3 {
		t.Errorf("totalCount after write = %d, want 3", res.TotalCount)
	}

	req, _ := http.NewRequest(http.MethodDelete, s.server.URL+"/api/v1/content/faq-1", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", delResp.StatusCode)
	}
	if resp := s.get(t, "/api/v1/content/faq-1", nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleted document status = %d", resp.StatusCode)
	}
}

func TestKafkaEventsReachSearch(t *testing.T) {
	s := newStack(t)
	event, _ := json.Marshal(ingestion.ContentEvent{
		EventID:     "evt-1",
		Op:          ingestion.OpUpsert,
		ContentType: "tutorial",
		Items: []helpsearch.ContentItem{
			{ID: "t-1", Title: "Combo Tutorial", Content: "Chain pops to build a combo.", Difficulty: helpsearch.Intermediate},
		},
	})
	if err := s.apply(context.Background(), []byte("help-content"), event); err != nil {
		t.Fatalf("apply: %v", err)
	}

	var res helpsearch.Result
	s.get(t, "/api/v1/search?q=combo&type=tutorial&difficulty=intermediate", &res)
	if len(res.Results) != 1 || res.Results[0].Document.ID != "t-1" {
		t.Fatalf("results = %+v", res.Results)
	}

	var body struct {
		Suggestions []helpsearch.Suggestion `json:"suggestions"`
	}
	s.get(t, "/api/v1/suggestions?q=com", &body)
	if len(body.Suggestions) == 0 || body.Suggestions[0].Text != "combo" {
		t.Errorf("suggestions = %+v", body.Suggestions)
	}
}

func TestZeroResultSearchSuggestsAlternatives(t *testing.T) {
	s := newStack(t)
	s.post(t, "/api/v1/content", `{"items":[{"id":"h-1","title":"Bubble Basics","content":"Pop them"}]}`)

	var res helpsearch.Result
	s.get(t, "/api/v1/search?q=bubblx&fuzzy=false", &res)
	if res.TotalCount != 0 {
		t.Fatalf("totalCount = %d, want 0", res.TotalCount)
	}
	if len(res.Suggestions) == 0 || res.Suggestions[0] != `Try searching for "bubble"` {
		t.Errorf("suggestions = %v", res.Suggestions)
	}

	var stats helpsearch.Statistics
	s.get(t, "/api/v1/stats", &stats)
	if stats.TotalSearches != 1 || stats.Index.TotalContentItems != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRedisOutageDegradesToUncachedSearch(t *testing.T) {
	s := newStack(t)
	s.post(t, "/api/v1/content", `{"items":[{"id":"h-1","title":"Bubble Basics","content":"Pop them"}]}`)
	s.redis.Close()

	for i := 0; i < 3; i++ {
		var res helpsearch.Result
		if resp := s.get(t, "/api/v1/search?q=bubble", &res); resp.StatusCode != http.StatusOK || res.TotalCount != 1 {
			t.Fatalf("search %d: status %d, total %d", i, resp.StatusCode, res.TotalCount)
		}
	}

	var report health.Report
	resp := s.get(t, "/health/ready", &report)
	if resp.StatusCode != http.StatusOK || report.Status != health.StatusDegraded {
		t.Errorf("ready = %d %s, want 200 degraded", resp.StatusCode, report.Status)
	}
}
