// Package helpsearch is the in-memory search engine over help, tutorial and
// FAQ content. It owns the term, category, tag and language indexes, runs
// the multi-pass query matcher, produces typeahead and zero-result
// suggestions, and tracks search statistics.
//
// All exported methods are safe for concurrent use. Searches share a read
// lock over the index set; indexing, rebuilds and Destroy take the write
// lock, so a search sees either the index before or after a mutation, never
// a mix.
package helpsearch

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/help-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/config"
)

// Engine indexes content items and answers queries against them.
type Engine struct {
	cfg       config.SearchConfig
	tokenizer *tokenizer.Tokenizer
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.RWMutex
	set        *indexSet
	generation atomic.Uint64

	stats *tracker
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger replaces the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock replaces the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New builds an empty engine from cfg.
func New(cfg config.SearchConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search config: %w", err)
	}

	var tokOpts []tokenizer.Option
	if cfg.JapaneseSegmentation {
		seg, err := tokenizer.NewJapaneseSegmenter()
		if err != nil {
			return nil, fmt.Errorf("creating japanese segmenter: %w", err)
		}
		tokOpts = append(tokOpts, tokenizer.WithSegmenter(seg))
	}

	e := &Engine{
		cfg:       cfg,
		tokenizer: tokenizer.New(cfg.StopWords, tokOpts...),
		logger:    slog.Default().With("component", "helpsearch"),
		now:       time.Now,
		set:       newIndexSet(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stats = newTracker(cfg.HistoryLimit)
	return e, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.SearchConfig {
	return e.cfg
}

// IndexContent adds items of the given content type ("help" when empty) to
// the index. An item whose ID is already indexed replaces the old document
// entirely. Invalid items are skipped and reported; they never abort the
// batch.
func (e *Engine) IndexContent(items []ContentItem, contentType string) IndexReport {
	now := e.now()
	report := IndexReport{}
	entries := make([]*entry, 0, len(items))
	for i, item := range items {
		doc, err := normalizeItem(item, contentType, e.cfg.DefaultLanguage, now)
		if err != nil {
			report.Skipped = append(report.Skipped, ItemError{Index: i, ID: item.ID, Err: err.Error()})
			e.logger.Warn("skipping content item", "index", i, "id", item.ID, "error", err)
			continue
		}
		entries = append(entries, newEntry(doc, e.tokenizer.ExtractTerms(doc.indexText(), doc.Language)))
	}

	e.mu.Lock()
	for _, ent := range entries {
		if e.set.put(ent) {
			report.Replaced++
		}
		report.Indexed++
	}
	if len(entries) > 0 {
		e.generation.Add(1)
	}
	docs := len(e.set.docs)
	e.mu.Unlock()

	e.logger.Info("content indexed",
		"type", contentType,
		"indexed", report.Indexed,
		"replaced", report.Replaced,
		"skipped", len(report.Skipped),
		"total_documents", docs,
	)
	return report
}

// RebuildIndex replaces the whole index with groups, keyed by content type.
// The new index is built aside and swapped in atomically. Groups are applied
// in ascending key order, so a later type wins an ID collision.
func (e *Engine) RebuildIndex(groups map[string][]ContentItem) IndexReport {
	now := e.now()
	types := make([]string, 0, len(groups))
	for contentType := range groups {
		types = append(types, contentType)
	}
	sort.Strings(types)

	fresh := newIndexSet()
	report := IndexReport{}
	for _, contentType := range types {
		for i, item := range groups[contentType] {
			doc, err := normalizeItem(item, contentType, e.cfg.DefaultLanguage, now)
			if err != nil {
				report.Skipped = append(report.Skipped, ItemError{Index: i, ID: item.ID, Err: err.Error()})
				continue
			}
			if fresh.put(newEntry(doc, e.tokenizer.ExtractTerms(doc.indexText(), doc.Language))) {
				report.Replaced++
			}
			report.Indexed++
		}
	}

	e.mu.Lock()
	e.set = fresh
	e.generation.Add(1)
	e.mu.Unlock()

	e.logger.Info("index rebuilt",
		"types", len(types),
		"documents", len(fresh.docs),
		"terms", fresh.terms.Len(),
		"skipped", len(report.Skipped),
	)
	return report
}

// Remove drops the document with id. It reports whether one was indexed.
func (e *Engine) Remove(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ent, ok := e.set.docs[id]
	if !ok {
		return false
	}
	e.set.remove(ent)
	e.generation.Add(1)
	return true
}

// Generation counts index mutations. It changes under the write lock, so a
// search that observed generation g saw exactly the index of g.
func (e *Engine) Generation() uint64 {
	return e.generation.Load()
}

// Document returns a copy of the indexed document with id.
func (e *Engine) Document(id string) (Document, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.set.docs[id]
	if !ok {
		return Document{}, false
	}
	return ent.doc.clone(), true
}

// Statistics returns a snapshot of search activity and index size.
func (e *Engine) Statistics() Statistics {
	e.mu.RLock()
	indexStats := e.set.statistics()
	e.mu.RUnlock()

	stats := e.stats.snapshot()
	stats.Index = indexStats
	return stats
}

// RecordSearch counts a search answered outside the engine, such as from a
// result cache, so that statistics reflect every query users ran.
func (e *Engine) RecordSearch(query string, elapsed time.Duration) {
	e.stats.begin(query, e.now())
	e.stats.finish(elapsed)
}

// RestoreStatistics replaces the search activity counters with s, typically
// the last persisted snapshot. Index statistics in s are ignored.
func (e *Engine) RestoreStatistics(s Statistics) {
	e.stats.restore(s)
	e.logger.Info("search statistics restored",
		"total_searches", s.TotalSearches,
		"queries", len(s.PopularQueries),
	)
}

// Destroy clears every index and all statistics. The engine stays usable and
// calling Destroy repeatedly is safe.
func (e *Engine) Destroy() {
	e.mu.Lock()
	e.set = newIndexSet()
	e.generation.Add(1)
	e.mu.Unlock()
	e.stats.reset()
	e.logger.Info("search engine destroyed")
}

// indexSet holds the documents and the four indexes derived from them.
type indexSet struct {
	docs       map[string]*entry
	terms      *index.Inverted
	categories *index.Inverted
	tags       *index.Inverted
	languages  *index.Inverted
}

func newIndexSet() *indexSet {
	return &indexSet{
		docs:       make(map[string]*entry),
		terms:      index.NewInverted(),
		categories: index.NewInverted(),
		tags:       index.NewInverted(),
		languages:  index.NewInverted(),
	}
}

// put stores ent, first removing every index entry of a document with the
// same ID. It reports whether a document was replaced.
func (s *indexSet) put(ent *entry) bool {
	id := ent.doc.ID
	old, replaced := s.docs[id]
	if replaced {
		s.remove(old)
	}
	s.docs[id] = ent
	for _, term := range ent.terms {
		s.terms.Add(term, id)
	}
	s.categories.Add(ent.doc.Category, id)
	for _, tag := range ent.doc.Tags {
		s.tags.Add(tag, id)
	}
	s.languages.Add(ent.doc.Language, id)
	return replaced
}

func (s *indexSet) remove(ent *entry) {
	id := ent.doc.ID
	for _, term := range ent.terms {
		s.terms.Remove(term, id)
	}
	s.categories.Remove(ent.doc.Category, id)
	for _, tag := range ent.doc.Tags {
		s.tags.Remove(tag, id)
	}
	s.languages.Remove(ent.doc.Language, id)
	delete(s.docs, id)
}

func (s *indexSet) statistics() IndexStatistics {
	return IndexStatistics{
		TotalContentItems: len(s.docs),
		TotalTerms:        s.terms.Len(),
		TotalCategories:   s.categories.Len(),
		TotalTags:         s.tags.Len(),
		TotalLanguages:    s.languages.Len(),
	}
}
