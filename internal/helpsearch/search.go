package helpsearch

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/help-search/pkg/errors"
)

// Multipliers applied to the base relevance of each indirect match kind.
const (
	partialFactor        = 0.7
	reverseFactor        = 0.8
	titleSubstringFactor = 0.9
	bodySubstringFactor  = 0.8
)

// Search runs query against the index. It never returns nil and never
// panics: rejected queries and internal failures come back as a Result with
// Err set. Every call, rejected ones included, is counted in the statistics.
func (e *Engine) Search(query string, opts Options) (res *Result) {
	start := time.Now()
	var resolved Options
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("search failed", "query", query, "panic", r)
			res = failedResult(fmt.Errorf("%w: %v", apperrors.ErrInternal, r))
		}
		elapsed := time.Since(start)
		e.stats.finish(elapsed)
		res.Metadata = Metadata{
			Query:          query,
			Options:        resolved,
			ResponseTimeMs: float64(elapsed) / float64(time.Millisecond),
			Timestamp:      e.timestamp(start),
		}
		e.logger.Debug("search completed",
			"query", query,
			"results", len(res.Results),
			"total", res.TotalCount,
			"elapsed", elapsed,
			"error", res.Error,
		)
	}()

	resolved = e.resolve(opts)
	e.stats.begin(query, e.now())

	if utf8.RuneCountInString(strings.TrimSpace(query)) < e.cfg.MinQueryLength {
		return failedResult(apperrors.ErrQueryTooShort)
	}
	if err := opts.validate(); err != nil {
		return failedResult(err)
	}
	return e.execute(query, resolved)
}

// timestamp reads the engine clock for result metadata, falling back to
// fallback if the clock itself panics.
func (e *Engine) timestamp(fallback time.Time) (t time.Time) {
	defer func() {
		if recover() != nil {
			t = fallback
		}
	}()
	return e.now()
}

// resolve fills engine defaults into the unset fields of opts.
func (e *Engine) resolve(opts Options) Options {
	if opts.Language == "" {
		opts.Language = e.cfg.DefaultLanguage
	}
	if opts.ContentType == "" {
		opts.ContentType = ContentTypeAll
	}
	if opts.FuzzySearch == nil {
		opts.FuzzySearch = Bool(true)
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = e.cfg.MaxResults
	}
	if opts.SortBy == "" {
		opts.SortBy = ranker.OrderRelevance
	}
	opts.Tags = append([]string(nil), opts.Tags...)
	return opts
}

func failedResult(err error) *Result {
	return &Result{
		Results:     []Hit{},
		Suggestions: []string{},
		Filters:     emptyFilters(),
		Error:       err.Error(),
		Err:         err,
	}
}

func (e *Engine) execute(query string, opts Options) *Result {
	e.mu.RLock()
	defer e.mu.RUnlock()

	qc := &queryContext{
		set:       e.set,
		query:     query,
		terms:     e.tokenizer.ExtractTerms(query, opts.Language),
		opts:      opts,
		threshold: e.cfg.FuzzyThreshold,
		eligible:  make(map[string]bool),
	}
	board := make(scoreBoard)
	for _, p := range passes {
		p(qc, board)
	}

	scored := make([]ranker.ScoredDoc, 0, len(board))
	for id, score := range board {
		doc := e.set.docs[id].doc
		scored = append(scored, ranker.ScoredDoc{
			DocID:       id,
			Score:       score,
			Popularity:  doc.Popularity,
			LastUpdated: doc.LastUpdated,
		})
	}
	ranker.Sort(scored, opts.SortBy)
	if len(scored) > opts.MaxResults {
		scored = scored[:opts.MaxResults]
	}

	hits := make([]Hit, 0, len(scored))
	for _, sd := range scored {
		ent := e.set.docs[sd.DocID]
		hits = append(hits, Hit{
			Document: ent.doc.clone(),
			Score:    sd.Score,
			Matches:  findMatches(ent, qc.terms),
		})
	}

	res := &Result{
		Results:     hits,
		TotalCount:  len(board),
		HasMore:     len(board) > len(hits),
		Suggestions: []string{},
		Filters:     e.set.filters(opts.Language),
	}
	if len(board) == 0 {
		res.Suggestions = e.zeroResultSuggestions(e.set, query, qc.terms, opts.Language)
	}
	return res
}

// queryContext carries one query through the match passes.
type queryContext struct {
	set       *indexSet
	query     string
	terms     []string
	opts      Options
	threshold float64
	eligible  map[string]bool
}

// qualifies reports whether the document passes every requested filter.
// Answers are memoised per query.
func (qc *queryContext) qualifies(id string) bool {
	if ok, seen := qc.eligible[id]; seen {
		return ok
	}
	ent, exists := qc.set.docs[id]
	ok := exists && matchesFilters(ent.doc, qc.opts)
	qc.eligible[id] = ok
	return ok
}

func matchesFilters(doc Document, opts Options) bool {
	if doc.Language != opts.Language {
		return false
	}
	if opts.Category != "" && doc.Category != opts.Category {
		return false
	}
	if opts.Difficulty != "" && doc.Difficulty != opts.Difficulty {
		return false
	}
	if opts.ContentType != "" && opts.ContentType != ContentTypeAll && doc.Type != opts.ContentType {
		return false
	}
	if len(opts.Tags) > 0 && !sharesTag(doc.Tags, opts.Tags) {
		return false
	}
	return true
}

func sharesTag(have []string, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// scoreBoard accumulates per-document scores across passes.
type scoreBoard map[string]float64

// add folds delta into id's score if the document qualifies.
func (b scoreBoard) add(qc *queryContext, id string, delta float64) {
	if !qc.qualifies(id) {
		return
	}
	b[id] += delta
}

// pass is one way of matching query terms against the index.
type pass func(qc *queryContext, board scoreBoard)

var passes = []pass{exactPass, partialPass, reversePass, substringPass, fuzzyPass}

// exactPass scores documents indexed under a query term.
func exactPass(qc *queryContext, board scoreBoard) {
	for _, term := range qc.terms {
		for _, id := range qc.set.terms.Docs(term) {
			board.add(qc, id, ranker.Relevance(qc.set.docs[id].fields, term, qc.query))
		}
	}
}

// partialPass scores documents under index terms that contain a query term.
func partialPass(qc *queryContext, board scoreBoard) {
	qc.set.terms.Each(func(key string, docs map[string]struct{}) {
		for _, term := range qc.terms {
			if key == term || !strings.Contains(key, term) {
				continue
			}
			for id := range docs {
				board.add(qc, id, ranker.Relevance(qc.set.docs[id].fields, key, qc.query)*partialFactor)
			}
		}
	})
}

// reversePass scores documents under index terms contained in a query term.
func reversePass(qc *queryContext, board scoreBoard) {
	qc.set.terms.Each(func(key string, docs map[string]struct{}) {
		for _, term := range qc.terms {
			if key == term || !strings.Contains(term, key) {
				continue
			}
			for id := range docs {
				board.add(qc, id, ranker.Relevance(qc.set.docs[id].fields, key, qc.query)*reverseFactor)
			}
		}
	})
}

// substringPass scans raw titles and bodies, catching text the tokenizer
// split differently from the query.
func substringPass(qc *queryContext, board scoreBoard) {
	for id, ent := range qc.set.docs {
		for _, term := range qc.terms {
			if strings.Contains(ent.fields.Title, term) {
				board.add(qc, id, ranker.Relevance(ent.fields, term, qc.query)*titleSubstringFactor)
			}
			if strings.Contains(ent.fields.Body, term) {
				board.add(qc, id, ranker.Relevance(ent.fields, term, qc.query)*bodySubstringFactor)
			}
		}
	}
}

// fuzzyPass scores documents under index terms whose edit-distance
// similarity to a query term reaches the configured threshold.
func fuzzyPass(qc *queryContext, board scoreBoard) {
	if !qc.opts.Fuzzy() {
		return
	}
	qc.set.terms.Each(func(key string, docs map[string]struct{}) {
		for _, term := range qc.terms {
			sim, ok := ranker.SimilarAtLeast(term, key, qc.threshold)
			if !ok {
				continue
			}
			for id := range docs {
				board.add(qc, id, ranker.Relevance(qc.set.docs[id].fields, key, term)*sim)
			}
		}
	})
}
