package ranker

import (
	"math"
	"sort"
	"strings"
	"time"
)

const (
	titleWeight         = 20
	titlePrefixBonus    = 10
	bodyWeight          = 10
	keywordWeight       = 15
	tagWeight           = 12
	popularityFactor    = 0.1
	popularityCap       = 5
	fullMatchMultiplier = 1.5
)

// Fields is the lower-cased view of a document that the relevance formula
// reads. Callers build it once at index time.
type Fields struct {
	Title      string
	Body       string
	Keywords   []string
	Tags       []string
	Popularity float64
}

// Relevance scores how well term matches a document. query is the text the
// term was derived from; an exact (case-insensitive) match between the two
// multiplies the score.
func Relevance(f Fields, term string, query string) float64 {
	term = strings.ToLower(term)
	var score float64
	if strings.Contains(f.Title, term) {
		score += titleWeight
		if strings.HasPrefix(f.Title, term) {
			score += titlePrefixBonus
		}
	}
	if strings.Contains(f.Body, term) {
		score += bodyWeight
	}
	if anyContains(f.Keywords, term) {
		score += keywordWeight
	}
	if anyContains(f.Tags, term) {
		score += tagWeight
	}
	score += math.Min(f.Popularity*popularityFactor, popularityCap)
	if strings.EqualFold(term, strings.TrimSpace(query)) {
		score *= fullMatchMultiplier
	}
	return score
}

func anyContains(values []string, term string) bool {
	for _, v := range values {
		if strings.Contains(v, term) {
			return true
		}
	}
	return false
}

// Order selects the ranking key for Sort.
type Order string

const (
	OrderRelevance  Order = "relevance"
	OrderDate       Order = "date"
	OrderPopularity Order = "popularity"
)

// Valid reports whether o is a known order. The empty order is valid and
// means relevance.
func (o Order) Valid() bool {
	switch o {
	case "", OrderRelevance, OrderDate, OrderPopularity:
		return true
	}
	return false
}

type ScoredDoc struct {
	DocID       string    `json:"doc_id"`
	Score       float64   `json:"score"`
	Popularity  float64   `json:"popularity"`
	LastUpdated time.Time `json:"last_updated"`
}

// Sort orders docs descending by the chosen key. Ties fall back to score,
// then to document ID so that results are stable across runs.
func Sort(docs []ScoredDoc, order Order) {
	sort.Slice(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		switch order {
		case OrderDate:
			if !a.LastUpdated.Equal(b.LastUpdated) {
				return a.LastUpdated.After(b.LastUpdated)
			}
		case OrderPopularity:
			if a.Popularity != b.Popularity {
				return a.Popularity > b.Popularity
			}
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.DocID < b.DocID
	})
}
