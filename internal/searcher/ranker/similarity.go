package ranker

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)), measured
// in runes. Identical strings score 1, and an empty operand scores 0.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	maxLen := max(len(ra), len(rb))
	return float64(maxLen-levenshtein(ra, rb)) / float64(maxLen)
}

// SimilarAtLeast computes Similarity only when the length difference alone
// does not already rule out reaching threshold.
func SimilarAtLeast(a, b string, threshold float64) (float64, bool) {
	if a == b {
		return 1, true
	}
	la, lb := runeLen(a), runeLen(b)
	if la == 0 || lb == 0 {
		return 0, false
	}
	maxLen := max(la, lb)
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if float64(maxLen-diff)/float64(maxLen) < threshold {
		return 0, false
	}
	sim := Similarity(a, b)
	return sim, sim >= threshold
}

// levenshtein uses two rolling rows; O(len(a)*len(b)) time.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func runeLen(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
