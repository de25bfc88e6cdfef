package helpsearch

import (
	"fmt"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/help-search/pkg/errors"
)

// Difficulty is the audience level of a piece of help content.
type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Difficulties lists every level in ascending order.
var Difficulties = []Difficulty{Beginner, Intermediate, Advanced}

// Valid reports whether d is one of the known levels.
func (d Difficulty) Valid() bool {
	switch d {
	case Beginner, Intermediate, Advanced:
		return true
	}
	return false
}

const (
	defaultCategory    = "general"
	defaultContentType = "help"
)

// ContentItem is a raw help, tutorial or FAQ entry as supplied by a content
// source. Only ID is required; FAQ entries may carry Question/Answer instead
// of Title/Content.
type ContentItem struct {
	ID             string     `json:"id" yaml:"id"`
	Title          string     `json:"title,omitempty" yaml:"title,omitempty"`
	Content        string     `json:"content,omitempty" yaml:"content,omitempty"`
	Question       string     `json:"question,omitempty" yaml:"question,omitempty"`
	Answer         string     `json:"answer,omitempty" yaml:"answer,omitempty"`
	Category       string     `json:"category,omitempty" yaml:"category,omitempty"`
	Tags           []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Language       string     `json:"language,omitempty" yaml:"language,omitempty"`
	Difficulty     Difficulty `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	Popularity     float64    `json:"popularity,omitempty" yaml:"popularity,omitempty"`
	LastUpdated    time.Time  `json:"lastUpdated,omitempty" yaml:"lastUpdated,omitempty"`
	SearchKeywords []string   `json:"searchKeywords,omitempty" yaml:"searchKeywords,omitempty"`
}

// Document is the engine's own copy of an indexed content item. Every field
// is populated; defaults are applied at ingestion.
type Document struct {
	ID             string     `json:"id"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	Category       string     `json:"category"`
	Tags           []string   `json:"tags"`
	Language       string     `json:"language"`
	Difficulty     Difficulty `json:"difficulty"`
	Popularity     float64    `json:"popularity"`
	LastUpdated    time.Time  `json:"lastUpdated"`
	SearchKeywords []string   `json:"searchKeywords"`
}

// clone returns a deep copy so callers never share slices with the engine.
func (d Document) clone() Document {
	d.Tags = append([]string(nil), d.Tags...)
	d.SearchKeywords = append([]string(nil), d.SearchKeywords...)
	return d
}

// normalizeItem validates item and builds its Document.
func normalizeItem(item ContentItem, contentType string, defaultLanguage string, now time.Time) (Document, error) {
	id := strings.TrimSpace(item.ID)
	if id == "" {
		return Document{}, apperrors.ErrMissingID
	}
	difficulty := item.Difficulty
	if difficulty == "" {
		difficulty = Beginner
	}
	if !difficulty.Valid() {
		return Document{}, fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrInvalidInput, item.Difficulty)
	}
	if contentType == "" {
		contentType = defaultContentType
	}
	doc := Document{
		ID:             id,
		Type:           contentType,
		Title:          firstNonEmpty(item.Title, item.Question),
		Body:           firstNonEmpty(item.Content, item.Answer),
		Category:       firstNonEmpty(strings.TrimSpace(item.Category), defaultCategory),
		Tags:           distinctNonEmpty(item.Tags),
		Language:       firstNonEmpty(strings.TrimSpace(item.Language), defaultLanguage),
		Difficulty:     difficulty,
		Popularity:     max(item.Popularity, 0),
		LastUpdated:    item.LastUpdated,
		SearchKeywords: distinctNonEmpty(item.SearchKeywords),
	}
	if doc.LastUpdated.IsZero() {
		doc.LastUpdated = now
	}
	return doc, nil
}

// entry is a stored document plus what the engine derives from it at index
// time.
type entry struct {
	doc    Document
	fields ranker.Fields
	terms  []string
}

func newEntry(doc Document, terms []string) *entry {
	return &entry{
		doc: doc,
		fields: ranker.Fields{
			Title:      strings.ToLower(doc.Title),
			Body:       strings.ToLower(doc.Body),
			Keywords:   lowerAll(doc.SearchKeywords),
			Tags:       lowerAll(doc.Tags),
			Popularity: doc.Popularity,
		},
		terms: terms,
	}
}

// indexText is what the term index is built from.
func (d Document) indexText() string {
	parts := make([]string, 0, 2+len(d.SearchKeywords))
	parts = append(parts, d.Title, d.Body)
	parts = append(parts, d.SearchKeywords...)
	return strings.Join(parts, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func distinctNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
