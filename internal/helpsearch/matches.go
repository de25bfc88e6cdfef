package helpsearch

import (
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	previewContext  = 50
	previewFallback = 100
	ellipsis        = "..."
)

// findMatches lists where each query term occurs in the hit's title and
// body.
func findMatches(ent *entry, terms []string) []Match {
	matches := make([]Match, 0, len(terms))
	for _, term := range terms {
		if strings.Contains(ent.fields.Title, term) {
			matches = append(matches, Match{Field: "title", Term: term, Preview: preview(ent.doc.Title, ent.fields.Title, term)})
		}
		if strings.Contains(ent.fields.Body, term) {
			matches = append(matches, Match{Field: "body", Term: term, Preview: preview(ent.doc.Body, ent.fields.Body, term)})
		}
	}
	return matches
}

// preview cuts a window of text around the first occurrence of term in
// lowered, the lower-cased form of text. Lower-casing maps rune for rune, so
// rune offsets carry over to the original text.
func preview(text string, lowered string, term string) string {
	runes := []rune(text)
	at := strings.Index(lowered, term)
	if at < 0 {
		if len(runes) <= previewFallback {
			return text
		}
		return string(runes[:previewFallback]) + ellipsis
	}
	start := utf8.RuneCountInString(lowered[:at])
	end := start + utf8.RuneCountInString(term)

	from := max(start-previewContext, 0)
	to := min(end+previewContext, len(runes))
	var b strings.Builder
	if from > 0 {
		b.WriteString(ellipsis)
	}
	b.WriteString(string(runes[from:to]))
	if to < len(runes) {
		b.WriteString(ellipsis)
	}
	return b.String()
}

func emptyFilters() Filters {
	return Filters{
		AvailableCategories:   []FacetCount{},
		AvailableTags:         []FacetCount{},
		AvailableDifficulties: []Difficulty{},
	}
}

// filters summarises categories, tags and difficulties among documents in
// language. Facets are ordered by count, then value.
func (s *indexSet) filters(language string) Filters {
	inLanguage := func(docs map[string]struct{}) int {
		n := 0
		for id := range docs {
			if s.docs[id].doc.Language == language {
				n++
			}
		}
		return n
	}

	f := emptyFilters()
	s.categories.Each(func(key string, docs map[string]struct{}) {
		if n := inLanguage(docs); n > 0 {
			f.AvailableCategories = append(f.AvailableCategories, FacetCount{Value: key, Count: n})
		}
	})
	s.tags.Each(func(key string, docs map[string]struct{}) {
		if n := inLanguage(docs); n > 0 {
			f.AvailableTags = append(f.AvailableTags, FacetCount{Value: key, Count: n})
		}
	})
	sortFacets(f.AvailableCategories)
	sortFacets(f.AvailableTags)

	present := make(map[Difficulty]bool, len(Difficulties))
	for _, ent := range s.docs {
		if ent.doc.Language == language {
			present[ent.doc.Difficulty] = true
		}
	}
	for _, d := range Difficulties {
		if present[d] {
			f.AvailableDifficulties = append(f.AvailableDifficulties, d)
		}
	}
	return f
}

func sortFacets(facets []FacetCount) {
	sort.Slice(facets, func(i, j int) bool {
		if facets[i].Count != facets[j].Count {
			return facets[i].Count > facets[j].Count
		}
		return facets[i].Value < facets[j].Value
	})
}
