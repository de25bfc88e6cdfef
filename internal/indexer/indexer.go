// Package indexer applies content changes to the search engine and keeps
// everything derived from the index in step: cached results are
// invalidated and the index gauges refreshed after every mutation.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/helpsearch"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/metrics"
)

// Invalidator drops cached search results.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// Source supplies the full content set, grouped by content type.
type Source interface {
	Load(ctx context.Context) (map[string][]helpsearch.ContentItem, error)
}

type Indexer struct {
	engine  *helpsearch.Engine
	cache   Invalidator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New builds an Indexer. cache and m may be nil; pass an untyped nil for
// cache when caching is disabled.
func New(engine *helpsearch.Engine, cache Invalidator, m *metrics.Metrics) *Indexer {
	return &Indexer{
		engine:  engine,
		cache:   cache,
		metrics: m,
		logger:  slog.Default().With("component", "indexer"),
	}
}

// Upsert indexes items of contentType, replacing documents with the same ID.
func (ix *Indexer) Upsert(ctx context.Context, contentType string, items []helpsearch.ContentItem) helpsearch.IndexReport {
	report := ix.engine.IndexContent(items, contentType)
	if ix.metrics != nil && report.Indexed > 0 {
		label := contentType
		if label == "" {
			label = "help"
		}
		ix.metrics.DocumentsIndexedTotal.WithLabelValues(label).Add(float64(report.Indexed))
	}
	if report.Indexed > 0 {
		ix.afterMutation(ctx)
	}
	return report
}

// Delete removes the documents with ids and returns how many existed.
func (ix *Indexer) Delete(ctx context.Context, ids ...string) int {
	removed := 0
	for _, id := range ids {
		if ix.engine.Remove(id) {
			removed++
		}
	}
	if removed > 0 {
		ix.afterMutation(ctx)
	}
	ix.logger.Info("content removed", "requested", len(ids), "removed", removed)
	return removed
}

// Rebuild replaces the whole index with groups.
func (ix *Indexer) Rebuild(ctx context.Context, groups map[string][]helpsearch.ContentItem) helpsearch.IndexReport {
	report := ix.engine.RebuildIndex(groups)
	if ix.metrics != nil {
		for contentType, items := range groups {
			ix.metrics.DocumentsIndexedTotal.WithLabelValues(contentType).Add(float64(len(items)))
		}
	}
	ix.afterMutation(ctx)
	return report
}

// Reload rebuilds the index from src.
func (ix *Indexer) Reload(ctx context.Context, src Source) (helpsearch.IndexReport, error) {
	groups, err := src.Load(ctx)
	if err != nil {
		return helpsearch.IndexReport{}, fmt.Errorf("loading content: %w", err)
	}
	return ix.Rebuild(ctx, groups), nil
}

func (ix *Indexer) afterMutation(ctx context.Context) {
	if ix.cache != nil {
		if _, err := ix.cache.Invalidate(ctx); err != nil {
			ix.logger.Warn("result cache not invalidated", "error", err)
		}
	}
	if ix.metrics != nil {
		stats := ix.engine.Statistics().Index
		ix.metrics.IndexDocuments.Set(float64(stats.TotalContentItems))
		ix.metrics.IndexTerms.Set(float64(stats.TotalTerms))
	}
}
