package ranker

import "testing"

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"bubble", "bubble", 1},
		{"", "bubble", 0},
		{"bubble", "", 0},
		{"abcd", "abce", 0.75},
		{"bubble", "bubbles", 6.0 / 7.0},
		{"kitten", "sitting", 4.0 / 7.0},
		{"バブル", "バブ", 2.0 / 3.0},
		{"xyz", "abc", 0},
	}
	for _, tt := range tests {
		if got := Similarity(tt.a, tt.b); !almostEqual(got, tt.want) {
			t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestSimilarAtLeastBoundary(t *testing.T) {
	if sim, ok := SimilarAtLeast("abcd", "abce", 0.75); !ok || sim != 0.75 {
		t.Errorf("similarity exactly at threshold should pass, got %v %v", sim, ok)
	}
	if _, ok := SimilarAtLeast("abcd", "abce", 0.75+1e-9); ok {
		t.Error("similarity just below threshold should fail")
	}
}

func TestSimilarAtLeastLengthPrefilter(t *testing.T) {
	// Length 2 vs 10 can never reach 0.7, whatever the characters.
	if _, ok := SimilarAtLeast("ab", "abcdefghij", 0.7); ok {
		t.Error("expected length prefilter to reject")
	}
	if sim, ok := SimilarAtLeast("bubble", "bubbles", 0.7); !ok || !almostEqual(sim, 6.0/7.0) {
		t.Errorf("got %v %v", sim, ok)
	}
}

func BenchmarkSimilarity(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Similarity("multiplayer", "multiplier")
	}
}
