package helpsearch

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/help-search/pkg/errors"
)

// ContentTypeAll disables the content type filter.
const ContentTypeAll = "all"

// Options narrows and shapes a single search. Zero values mean "use the
// engine default" (or "no filter" for the filter fields).
type Options struct {
	Language    string       `json:"language,omitempty"`
	Category    string       `json:"category,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Difficulty  Difficulty   `json:"difficulty,omitempty"`
	ContentType string       `json:"contentType,omitempty"`
	FuzzySearch *bool        `json:"fuzzySearch,omitempty"`
	MaxResults  int          `json:"maxResults,omitempty"`
	SortBy      ranker.Order `json:"sortBy,omitempty"`
}

// Bool returns a pointer to b, for Options.FuzzySearch.
func Bool(b bool) *bool {
	return &b
}

// Fuzzy reports whether the fuzzy pass is enabled. It defaults to true.
func (o Options) Fuzzy() bool {
	return o.FuzzySearch == nil || *o.FuzzySearch
}

func (o Options) validate() error {
	if !o.SortBy.Valid() {
		return fmt.Errorf("%w: unknown sort order %q", apperrors.ErrInvalidInput, o.SortBy)
	}
	if o.Difficulty != "" && !o.Difficulty.Valid() {
		return fmt.Errorf("%w: unknown difficulty %q", apperrors.ErrInvalidInput, o.Difficulty)
	}
	if o.MaxResults < 0 {
		return fmt.Errorf("%w: maxResults must not be negative", apperrors.ErrInvalidInput)
	}
	return nil
}

// Result is the outcome of one Search call. A rejected or failed search is
// still a Result, with Err set and no hits.
type Result struct {
	Results     []Hit    `json:"results"`
	TotalCount  int      `json:"totalCount"`
	Suggestions []string `json:"suggestions"`
	HasMore     bool     `json:"hasMore"`
	Filters     Filters  `json:"filters"`
	Metadata    Metadata `json:"metadata"`
	Error       string   `json:"error,omitempty"`

	// Err is the typed form of Error.
	Err error `json:"-"`
}

// Hit is one ranked document.
type Hit struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
	Matches  []Match  `json:"matches"`
}

// Match records where a query term occurs in a hit, with surrounding text.
type Match struct {
	Field   string `json:"field"`
	Term    string `json:"term"`
	Preview string `json:"preview"`
}

// Filters summarises what further narrowing is possible in the searched
// language.
type Filters struct {
	AvailableCategories   []FacetCount `json:"availableCategories"`
	AvailableTags         []FacetCount `json:"availableTags"`
	AvailableDifficulties []Difficulty `json:"availableDifficulties"`
}

type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type Metadata struct {
	Query          string    `json:"query"`
	Options        Options   `json:"options"`
	ResponseTimeMs float64   `json:"responseTimeMs"`
	Timestamp      time.Time `json:"timestamp"`
}

// SuggestionType classifies a Suggestion.
type SuggestionType string

const (
	SuggestionPopular  SuggestionType = "popular"
	SuggestionTerm     SuggestionType = "term"
	SuggestionCategory SuggestionType = "category"
)

type Suggestion struct {
	Text   string         `json:"text"`
	Type   SuggestionType `json:"type"`
	Score  float64        `json:"score"`
	Source string         `json:"source"`
}

// SuggestionOptions controls GetSuggestions. Language, when set, restricts
// term and category suggestions to those present in that language.
type SuggestionOptions struct {
	MaxSuggestions int    `json:"maxSuggestions,omitempty"`
	IncludePopular *bool  `json:"includePopular,omitempty"`
	Language       string `json:"language,omitempty"`
}

const defaultMaxSuggestions = 10

// Statistics is a read-only snapshot of search activity and index size.
type Statistics struct {
	TotalSearches         int64            `json:"totalSearches"`
	PopularQueries        map[string]int64 `json:"popularQueries"`
	AverageResponseTimeMs float64          `json:"averageResponseTimeMs"`
	LastUpdated           time.Time        `json:"lastUpdated"`
	History               []HistoryEntry   `json:"history"`
	TopQueries            []QueryCount     `json:"topQueries"`
	Index                 IndexStatistics  `json:"index"`
}

type HistoryEntry struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

type IndexStatistics struct {
	TotalContentItems int `json:"totalContentItems"`
	TotalTerms        int `json:"totalTerms"`
	TotalCategories   int `json:"totalCategories"`
	TotalTags         int `json:"totalTags"`
	TotalLanguages    int `json:"totalLanguages"`
}

// IndexReport summarises one IndexContent call.
type IndexReport struct {
	Indexed  int         `json:"indexed"`
	Replaced int         `json:"replaced"`
	Skipped  []ItemError `json:"skipped,omitempty"`
}

// ItemError describes an item that could not be indexed.
type ItemError struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Err   string `json:"error"`
}
