// Package cache stores search results in Redis, keyed by the normalised
// query and its options. Concurrent misses for the same key are collapsed
// with singleflight, and every Redis call goes through a circuit breaker so
// that an unhealthy Redis degrades to uncached searches instead of slowing
// them down.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/help-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "helpsearch:result:"

// Source tells where a GetOrCompute result came from. Its values double as
// the cache label on search metrics.
type Source string

const (
	SourceComputed Source = "miss"
	SourceCache    Source = "hit"
	// SourceShared is a result computed by a concurrent caller with the same
	// key.
	SourceShared Source = "shared"
)

// Stats are the cache counters since start.
type Stats struct {
	Hits         int64  `json:"hits"`
	Misses       int64  `json:"misses"`
	Total        int64  `json:"total"`
	HitRate      string `json:"hitRate"`
	BreakerState string `json:"breakerState"`
}

type ResultCache struct {
	client     *pkgredis.Client
	ttl        time.Duration
	breaker    *resilience.Breaker
	metrics    *metrics.Metrics
	generation func() uint64
	group      singleflight.Group
	logger     *slog.Logger
	hits       atomic.Int64
	misses     atomic.Int64
}

type Option func(*ResultCache)

// WithGeneration scopes every key to the index generation reported by fn.
// A result computed against an older index is then stored under a key that
// is no longer read, even if it is written after the invalidation that
// followed the index change.
func WithGeneration(fn func() uint64) Option {
	return func(c *ResultCache) {
		c.generation = fn
	}
}

// New builds a cache over client. m may be nil.
func New(client *pkgredis.Client, ttl time.Duration, breaker *resilience.Breaker, m *metrics.Metrics, opts ...Option) *ResultCache {
	c := &ResultCache{
		client:  client,
		ttl:     ttl,
		breaker: breaker,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached result for query and opts. Redis errors and an open
// breaker count as misses.
func (c *ResultCache) Get(ctx context.Context, query string, opts helpsearch.Options) (*helpsearch.Result, bool) {
	return c.get(ctx, c.key(query, opts))
}

func (c *ResultCache) get(ctx context.Context, key string) (*helpsearch.Result, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.client.Get(ctx, key)
		if pkgredis.IsNil(getErr) {
			return nil
		}
		return getErr
	})
	if err != nil || data == nil {
		if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}

	var result helpsearch.Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return &result, true
}

// Set stores result unless it carries an error.
func (c *ResultCache) Set(ctx context.Context, query string, opts helpsearch.Options, result *helpsearch.Result) {
	c.set(ctx, c.key(query, opts), result)
}

func (c *ResultCache) set(ctx context.Context, key string, result *helpsearch.Result) {
	if result == nil || result.Err != nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute serves from the cache or runs compute once per key, however
// many callers miss at the same time. The key, generation included, is fixed
// before compute runs.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	query string,
	opts helpsearch.Options,
	compute func() (*helpsearch.Result, error),
) (*helpsearch.Result, Source, error) {
	key := c.key(query, opts)
	if result, ok := c.get(ctx, key); ok {
		return result, SourceCache, nil
	}
	ran := false
	val, err, _ := c.group.Do(key, func() (any, error) {
		ran = true
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, result)
		return result, nil
	})
	if err != nil {
		return nil, SourceComputed, err
	}
	if !ran {
		return val.(*helpsearch.Result), SourceShared, nil
	}
	return val.(*helpsearch.Result), SourceComputed, nil
}

// Invalidate drops every cached result. It is called after each index
// mutation.
func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var delErr error
		deleted, delErr = c.client.DeleteByPattern(ctx, keyPrefix+"*")
		return delErr
	})
	if err != nil {
		return deleted, fmt.Errorf("invalidating result cache: %w", err)
	}
	if c.metrics != nil {
		c.metrics.CacheInvalidationsTotal.Inc()
	}
	c.logger.Info("result cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *ResultCache) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	var rate float64
	if total > 0 {
		rate = float64(hits) / float64(total) * 100
	}
	return Stats{
		Hits:         hits,
		Misses:       misses,
		Total:        total,
		HitRate:      fmt.Sprintf("%.1f%%", rate),
		BreakerState: c.breaker.State().String(),
	}
}

// Ping reports whether Redis answers.
func (c *ResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx)
}

func (c *ResultCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ResultCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *ResultCache) key(query string, opts helpsearch.Options) string {
	key := Key(query, opts)
	if c.generation != nil {
		key = fmt.Sprintf("%s:%d", key, c.generation())
	}
	return key
}

// Key derives the cache key. Queries differing only in case or whitespace
// share a key, as do option sets differing only in tag order.
func Key(query string, opts helpsearch.Options) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	tags := append([]string(nil), opts.Tags...)
	sort.Strings(tags)
	opts.Tags = tags
	encoded, _ := json.Marshal(opts)
	hash := sha256.Sum256([]byte(normalized + "\x00" + string(encoded)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
