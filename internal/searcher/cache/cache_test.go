package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/config"
	pkgredis "github.com/Adithya-Monish-Kumar-K/help-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/resilience"
)

func newTestCache(t *testing.T) (*ResultCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	return New(client, time.Minute, breaker, nil), mr
}

func sampleResult() *helpsearch.Result {
	return &helpsearch.Result{
		Results: []helpsearch.Hit{
			{Document: helpsearch.Document{ID: "a", Title: "Bubble Types"}, Score: 42},
		},
		TotalCount:  1,
		Suggestions: []string{},
	}
}

func TestKeyNormalisation(t *testing.T) {
	base := Key("Bubble  Types", helpsearch.Options{Tags: []string{"b", "a"}})
	if got := Key("  bubble types ", helpsearch.Options{Tags: []string{"a", "b"}}); got != base {
		t.Errorf("equivalent requests got different keys")
	}
	if got := Key("bubble types", helpsearch.Options{Category: "faq"}); got == base {
		t.Errorf("different options share a key")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	opts := helpsearch.Options{Language: "en"}

	if _, ok := c.Get(ctx, "bubble", opts); ok {
		t.Fatal("hit on empty cache")
	}
	c.Set(ctx, "bubble", opts, sampleResult())
	got, ok := c.Get(ctx, "bubble", opts)
	if !ok {
		t.Fatal("miss after Set")
	}
	if got.TotalCount != 1 || got.Results[0].Document.ID != "a" {
		t.Errorf("cached result = %+v", got)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok := c.Get(ctx, "bubble", opts); ok {
		t.Error("hit after TTL expiry")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 2 || stats.Total != 3 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSetSkipsFailedResults(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	failed := &helpsearch.Result{Err: errors.New("query too short"), Error: "query too short"}
	c.Set(ctx, "a", helpsearch.Options{}, failed)
	if _, ok := c.Get(ctx, "a", helpsearch.Options{}); ok {
		t.Error("failed result was cached")
	}
}

func TestGetOrComputeCollapsesMisses(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	var calls atomic.Int32
	release := make(chan struct{})

	compute := func() (*helpsearch.Result, error) {
		calls.Add(1)
		<-release
		return sampleResult(), nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		sources = make(map[Source]int)
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, source, err := c.GetOrCompute(ctx, "bubble", helpsearch.Options{}, compute)
			if err != nil {
				t.Errorf("GetOrCompute: %v", err)
				return
			}
			mu.Lock()
			sources[source]++
			mu.Unlock()
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
	if sources[SourceComputed] != 1 || sources[SourceShared] != 4 {
		t.Errorf("sources = %v, want one computed and four shared", sources)
	}
	_, source, err := c.GetOrCompute(ctx, "bubble", helpsearch.Options{}, compute)
	if err != nil || source != SourceCache {
		t.Errorf("expected a cache hit afterwards, source=%v err=%v", source, err)
	}
}

func TestGetOrComputeDropsResultsOfReplacedIndex(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := pkgredis.NewClient(context.Background(), config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	cfg := config.DefaultSearchConfig()
	cfg.DefaultLanguage = "en"
	engine, err := helpsearch.New(cfg)
	if err != nil {
		t.Fatalf("helpsearch.New: %v", err)
	}
	breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Hour})
	c := New(client, time.Minute, breaker, nil, WithGeneration(engine.Generation))
	ctx := context.Background()

	engine.IndexContent([]helpsearch.ContentItem{{ID: "a", Title: "Bubble Types"}}, "help")

	// The index changes and the cache is invalidated while the first
	// search is still in flight, so its write lands after the invalidation.
	_, source, err := c.GetOrCompute(ctx, "bubble", helpsearch.Options{}, func() (*helpsearch.Result, error) {
		result := engine.Search("bubble", helpsearch.Options{})
		engine.IndexContent([]helpsearch.ContentItem{{ID: "b", Title: "Bubble Basics"}}, "help")
		if _, err := c.Invalidate(ctx); err != nil {
			t.Errorf("Invalidate: %v", err)
		}
		return result, nil
	})
	if err != nil || source != SourceComputed {
		t.Fatalf("first GetOrCompute: source=%v err=%v", source, err)
	}

	result, source, err := c.GetOrCompute(ctx, "bubble", helpsearch.Options{}, func() (*helpsearch.Result, error) {
		return engine.Search("bubble", helpsearch.Options{}), nil
	})
	if err != nil {
		t.Fatalf("second GetOrCompute: %v", err)
	}
	if source != SourceComputed || result.TotalCount != 2 {
		t.Errorf("served stale result: source=%v total=%d, want a fresh total of 2", source, result.TotalCount)
	}
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	c.Set(ctx, "bubble", helpsearch.Options{}, sampleResult())
	c.Set(ctx, "combo", helpsearch.Options{}, sampleResult())
	mr.Set("unrelated", "keep")

	deleted, err := c.Invalidate(ctx)
	if err != nil || deleted != 2 {
		t.Fatalf("Invalidate = %d, %v", deleted, err)
	}
	if _, ok := c.Get(ctx, "bubble", helpsearch.Options{}); ok {
		t.Error("hit after invalidate")
	}
	if !mr.Exists("unrelated") {
		t.Error("invalidate removed a foreign key")
	}
}

func TestRedisOutageOpensBreaker(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	for i := 0; i < 3; i++ {
		if _, ok := c.Get(ctx, "bubble", helpsearch.Options{}); ok {
			t.Fatal("hit with redis down")
		}
	}
	if got := c.Stats().BreakerState; got != "open" {
		t.Errorf("breaker state = %s, want open", got)
	}

	result, source, err := c.GetOrCompute(ctx, "bubble", helpsearch.Options{}, func() (*helpsearch.Result, error) {
		return sampleResult(), nil
	})
	if err != nil || source != SourceComputed || result.TotalCount != 1 {
		t.Errorf("degraded GetOrCompute = %+v, %v, %v", result, source, err)
	}
}
