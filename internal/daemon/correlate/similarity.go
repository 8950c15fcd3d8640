package correlate

import "strings"

// Similarity scores how alike two labels are, in [0,1].
// It is a seam so the comparison strategy can be swapped without
// touching the correlator.
type Similarity interface {
	Score(a, b string) float64
}

// OverlapSimilarity is the default label comparison: exact match scores
// 1.0, substring containment 0.8, anything else a normalized
// character-overlap ratio.
type OverlapSimilarity struct{}

func (OverlapSimilarity) Score(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}
	return overlapRatio(a, b)
}

// overlapRatio counts distinct characters present in both strings,
// normalized by the size of the smaller character set.
func overlapRatio(a, b string) float64 {
	setA := make(map[rune]struct{})
	for _, r := range a {
		setA[r] = struct{}{}
	}
	setB := make(map[rune]struct{})
	for _, r := range b {
		setB[r] = struct{}{}
	}

	smaller := setA
	larger := setB
	if len(setB) < len(setA) {
		smaller, larger = setB, setA
	}
	if len(smaller) == 0 {
		return 0
	}

	shared := 0
	for r := range smaller {
		if _, ok := larger[r]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}
