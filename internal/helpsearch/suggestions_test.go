package helpsearch

import (
	"testing"
	"time"
)

func TestGetSuggestions(t *testing.T) {
	e := newTestEngine(t)
	e.IndexContent([]ContentItem{
		{ID: "a", Title: "Bubble Types", Category: "bubble-basics"},
		{ID: "b", Title: "Bubble Combos", Category: "gameplay"},
		{ID: "c", Title: "バブルの種類", Language: "ja", Category: "bubble-basics"},
	}, "help")
	e.Search("bubble", Options{})
	e.Search("bubble", Options{})
	e.Search("bubble combos", Options{})

	got := e.GetSuggestions("BUB", SuggestionOptions{})
	want := []Suggestion{
		{Text: "bubble", Type: SuggestionPopular, Score: 20, Source: "history"},
		{Text: "bubble combos", Type: SuggestionPopular, Score: 10, Source: "history"},
		{Text: "bubble-basics", Type: SuggestionCategory, Score: 10, Source: "category"},
	}
	if len(got) != len(want) {
		t.Fatalf("GetSuggestions = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("suggestion %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGetSuggestionsOptions(t *testing.T) {
	e := newTestEngine(t)
	e.IndexContent([]ContentItem{
		{ID: "a", Title: "Combo chains", Category: "gameplay"},
		{ID: "b", Title: "Combo timing", Category: "gameplay"},
		{ID: "c", Title: "Combo kanji", Language: "ja", Category: "gameplay"},
	}, "help")
	e.Search("combo", Options{})

	t.Run("popular excluded", func(t *testing.T) {
		got := e.GetSuggestions("com", SuggestionOptions{IncludePopular: Bool(false)})
		if len(got) != 1 || got[0].Type != SuggestionTerm || got[0].Score != 3 {
			t.Errorf("got %+v, want only the term combo with score 3", got)
		}
	})
	t.Run("language restricts counts", func(t *testing.T) {
		got := e.GetSuggestions("com", SuggestionOptions{IncludePopular: Bool(false), Language: "ja"})
		if len(got) != 1 || got[0].Score != 1 {
			t.Errorf("got %+v, want combo scored 1 for ja", got)
		}
	})
	t.Run("max suggestions", func(t *testing.T) {
		got := e.GetSuggestions("i", SuggestionOptions{MaxSuggestions: 2})
		if len(got) != 2 {
			t.Errorf("got %d suggestions, want 2", len(got))
		}
	})
	t.Run("empty partial", func(t *testing.T) {
		if got := e.GetSuggestions("   ", SuggestionOptions{}); len(got) != 0 {
			t.Errorf("got %+v, want none", got)
		}
	})
}

func TestStatistics(t *testing.T) {
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	e := newTestEngine(t)
	e.now = func() time.Time { return fixed }
	e.IndexContent(bubbleItems(), "help")

	e.Search("bubble", Options{})
	e.Search("bubble", Options{})
	e.Search("x", Options{})
	e.RecordSearch("cached query", 30*time.Millisecond)

	stats := e.Statistics()
	if stats.TotalSearches != 4 {
		t.Errorf("TotalSearches = %d, want 4", stats.TotalSearches)
	}
	if stats.PopularQueries["bubble"] != 2 || stats.PopularQueries["x"] != 1 {
		t.Errorf("PopularQueries = %v", stats.PopularQueries)
	}
	if len(stats.History) != 4 || stats.History[3].Query != "cached query" {
		t.Errorf("History = %+v", stats.History)
	}
	if !stats.LastUpdated.Equal(fixed) {
		t.Errorf("LastUpdated = %v", stats.LastUpdated)
	}
	if stats.TopQueries[0] != (QueryCount{Query: "bubble", Count: 2}) {
		t.Errorf("TopQueries = %+v", stats.TopQueries)
	}
	if stats.AverageResponseTimeMs <= 0 {
		t.Errorf("AverageResponseTimeMs = %v", stats.AverageResponseTimeMs)
	}
	if stats.Index.TotalContentItems != 2 || stats.Index.TotalLanguages != 1 || stats.Index.TotalCategories != 1 {
		t.Errorf("Index = %+v", stats.Index)
	}

	// Snapshots are copies.
	stats.PopularQueries["bubble"] = 100
	if e.Statistics().PopularQueries["bubble"] != 2 {
		t.Error("snapshot shares state with the engine")
	}
}

func TestTrackerRunningAverageAndHistoryLimit(t *testing.T) {
	tr := newTracker(3)
	at := time.Now()
	for i, ms := range []int{10, 20, 30, 40} {
		tr.begin(string(rune('a'+i)), at)
		tr.finish(time.Duration(ms) * time.Millisecond)
	}
	stats := tr.snapshot()
	if stats.AverageResponseTimeMs != 25 {
		t.Errorf("average = %v, want 25", stats.AverageResponseTimeMs)
	}
	if len(stats.History) != 3 || stats.History[0].Query != "b" {
		t.Errorf("history = %+v, want the 3 most recent", stats.History)
	}
	if stats.TotalSearches != 4 {
		t.Errorf("TotalSearches = %d", stats.TotalSearches)
	}
}

func TestRestoreStatistics(t *testing.T) {
	e := newTestEngine(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	e.RestoreStatistics(Statistics{
		TotalSearches:         4,
		PopularQueries:        map[string]int64{"bubble": 3, "combo": 1},
		AverageResponseTimeMs: 10,
		LastUpdated:           at,
		History:               []HistoryEntry{{Query: "bubble", Timestamp: at}},
	})

	e.RecordSearch("combo", 20*time.Millisecond)
	stats := e.Statistics()
	if stats.TotalSearches != 5 {
		t.Errorf("TotalSearches = %d, want 5", stats.TotalSearches)
	}
	if stats.AverageResponseTimeMs != 12 {
		t.Errorf("average = %v, want 12", stats.AverageResponseTimeMs)
	}
	if stats.PopularQueries["combo"] != 2 || len(stats.History) != 2 {
		t.Errorf("stats = %+v", stats)
	}

	got := e.GetSuggestions("bub", SuggestionOptions{})
	if len(got) == 0 || got[0].Text != "bubble" || got[0].Type != SuggestionPopular {
		t.Errorf("suggestions after restore = %+v", got)
	}
}
