package helpsearch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/ranker"
)

const (
	zeroResultSuggestionLimit = 3
	similarTermMin            = 0.7

	popularScoreFactor  = 10
	categoryScoreFactor = 5
)

// phrasing holds the templates used for zero-result suggestions.
type phrasing struct {
	similar string
	popular string
}

var phrasings = map[string]phrasing{
	"ja": {similar: "「%s」で検索してみてください", popular: "「%s」を検索"},
	"en": {similar: "Try searching for %q", popular: "Search for %q"},
}

func phrasingFor(language string) phrasing {
	if p, ok := phrasings[language]; ok {
		return p
	}
	return phrasings["en"]
}

// GetSuggestions returns typeahead suggestions for a partially typed query,
// drawn from past queries, indexed terms and category names that contain
// it. Results are ordered by score.
func (e *Engine) GetSuggestions(partial string, opts SuggestionOptions) []Suggestion {
	needle := strings.ToLower(strings.TrimSpace(partial))
	if needle == "" {
		return []Suggestion{}
	}
	limit := opts.MaxSuggestions
	if limit <= 0 {
		limit = defaultMaxSuggestions
	}

	var out []Suggestion
	seen := make(map[string]bool)
	if opts.IncludePopular == nil || *opts.IncludePopular {
		for _, q := range e.stats.top(0) {
			if strings.Contains(strings.ToLower(q.Query), needle) && !seen[q.Query] {
				seen[q.Query] = true
				out = append(out, Suggestion{
					Text:   q.Query,
					Type:   SuggestionPopular,
					Score:  float64(q.Count * popularScoreFactor),
					Source: "history",
				})
			}
		}
	}

	e.mu.RLock()
	count := func(docs map[string]struct{}) int {
		if opts.Language == "" {
			return len(docs)
		}
		n := 0
		for id := range docs {
			if e.set.docs[id].doc.Language == opts.Language {
				n++
			}
		}
		return n
	}
	e.set.terms.Each(func(term string, docs map[string]struct{}) {
		if !strings.Contains(term, needle) || seen[term] {
			return
		}
		if n := count(docs); n > 0 {
			seen[term] = true
			out = append(out, Suggestion{Text: term, Type: SuggestionTerm, Score: float64(n), Source: "index"})
		}
	})
	e.set.categories.Each(func(category string, docs map[string]struct{}) {
		if !strings.Contains(strings.ToLower(category), needle) || seen[category] {
			return
		}
		if n := count(docs); n > 0 {
			seen[category] = true
			out = append(out, Suggestion{Text: category, Type: SuggestionCategory, Score: float64(n * categoryScoreFactor), Source: "category"})
		}
	})
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Text < out[j].Text
	})
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Suggestion{}
	}
	return out
}

// zeroResultSuggestions proposes alternatives when a query matched nothing:
// close but not identical index terms first, then the most popular past
// queries other than query itself. Caller holds e.mu.
func (e *Engine) zeroResultSuggestions(set *indexSet, query string, terms []string, language string) []string {
	p := phrasingFor(language)
	out := make([]string, 0, zeroResultSuggestionLimit)
	keys := set.terms.Keys()

search:
	for _, term := range terms {
		for _, key := range keys {
			if sim := ranker.Similarity(term, key); sim >= similarTermMin && sim < 1 {
				out = append(out, fmt.Sprintf(p.similar, key))
				if len(out) >= zeroResultSuggestionLimit {
					break search
				}
			}
		}
	}

	if missing := zeroResultSuggestionLimit - len(out); missing > 0 {
		for _, q := range e.stats.top(missing + 1) {
			if q.Query == query || len(out) == zeroResultSuggestionLimit {
				continue
			}
			out = append(out, fmt.Sprintf(p.popular, q.Query))
		}
	}
	return out
}
