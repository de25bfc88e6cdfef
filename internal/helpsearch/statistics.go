package helpsearch

import (
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/help-search/pkg/config"
)

const (
	defaultHistoryLimit = config.MaxHistoryLimit
	topQueriesLimit     = 10
)

// tracker accumulates search activity. A search is counted in two steps:
// begin records the query as soon as it arrives, finish folds in its
// response time once it completes.
type tracker struct {
	limit int

	mu          sync.Mutex
	total       int64
	timed       int64
	avgMs       float64
	popular     map[string]int64
	history     []HistoryEntry
	lastUpdated time.Time
}

func newTracker(limit int) *tracker {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &tracker{
		limit:   limit,
		popular: make(map[string]int64),
	}
}

func (t *tracker) begin(query string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total++
	t.popular[query]++
	t.history = append(t.history, HistoryEntry{Query: query, Timestamp: at})
	if over := len(t.history) - t.limit; over > 0 {
		t.history = append(t.history[:0:0], t.history[over:]...)
	}
	t.lastUpdated = at
}

// finish updates the running mean over completed searches.
func (t *tracker) finish(elapsed time.Duration) {
	ms := float64(elapsed) / float64(time.Millisecond)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timed++
	t.avgMs = (t.avgMs*float64(t.timed-1) + ms) / float64(t.timed)
}

// top returns up to n queries (all of them when n <= 0) by descending
// count, ties broken by query.
func (t *tracker) top(n int) []QueryCount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return topQueries(t.popular, n)
}

func (t *tracker) snapshot() Statistics {
	t.mu.Lock()
	defer t.mu.Unlock()
	popular := make(map[string]int64, len(t.popular))
	for q, c := range t.popular {
		popular[q] = c
	}
	return Statistics{
		TotalSearches:         t.total,
		PopularQueries:        popular,
		AverageResponseTimeMs: t.avgMs,
		LastUpdated:           t.lastUpdated,
		History:               append([]HistoryEntry(nil), t.history...),
		TopQueries:            topQueries(t.popular, topQueriesLimit),
	}
}

// restore loads a snapshot. Restored searches all count as completed.
func (t *tracker) restore(s Statistics) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = s.TotalSearches
	t.timed = s.TotalSearches
	t.avgMs = s.AverageResponseTimeMs
	t.popular = make(map[string]int64, len(s.PopularQueries))
	for q, c := range s.PopularQueries {
		t.popular[q] = c
	}
	history := s.History
	if over := len(history) - t.limit; over > 0 {
		history = history[over:]
	}
	t.history = append([]HistoryEntry(nil), history...)
	t.lastUpdated = s.LastUpdated
}

func (t *tracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = 0
	t.timed = 0
	t.avgMs = 0
	t.popular = make(map[string]int64)
	t.history = nil
	t.lastUpdated = time.Time{}
}

func topQueries(popular map[string]int64, n int) []QueryCount {
	out := make([]QueryCount, 0, len(popular))
	for q, c := range popular {
		out = append(out, QueryCount{Query: q, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Query < out[j].Query
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
