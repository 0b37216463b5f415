package stac

import "strings"

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over runes,
// after trimming and case folding. Two empty strings are identical.
func Similarity(a, b string) float64 {
	ra := []rune(strings.ToLower(strings.TrimSpace(a)))
	rb := []rune(strings.ToLower(strings.TrimSpace(b)))
	maxLen := max(len(ra), len(rb))
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(distance(ra, rb))/float64(maxLen)
}

func distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 0
			if a[i-1] != b[j-1] {
				cost = 1
			}
			row[j] = min(row[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		row, prev = prev, row
	}
	return prev[len(b)]
}

// BestMatch returns the highest similarity between name and any candidate.
func BestMatch(name string, candidates []string) float64 {
	best := 0.0
	for _, c := range candidates {
		if s := Similarity(name, c); s > best {
			best = s
		}
	}
	return best
}
