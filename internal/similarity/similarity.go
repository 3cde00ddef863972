// Package similarity provides the normalized string similarity functions
// used by the fuzzy linkage path. Every function maps a pair of values to
// a score in [0, 1], 1.0 meaning identical.
package similarity

import "fmt"

// Func scores two strings, returning a value in [0, 1].
type Func func(a, b string) float64

// Algorithm names accepted in fuzzy match options.
const (
	AlgorithmPrefix      = "prefix"
	AlgorithmLevenshtein = "levenshtein"
	AlgorithmJaro        = "jaro"
)

// Resolve maps an algorithm name to its scoring function. An empty name
// selects the default prefix scorer.
func Resolve(name string) (Func, error) {
	switch name {
	case "", AlgorithmPrefix:
		return Prefix, nil
	case AlgorithmLevenshtein:
		return Levenshtein, nil
	case AlgorithmJaro:
		return Jaro, nil
	default:
		return nil, fmt.Errorf("unknown similarity algorithm %q", name)
	}
}

// Prefix is the default scorer: exact equality scores 1.0; if one value is
// a prefix of the other the score is the length ratio min/max; anything
// else scores 0. Cheap and predictable, which is what batch linkage wants.
func Prefix(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	shorter, longer := a, b
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if longer[:len(shorter)] == shorter {
		return float64(len(shorter)) / float64(len(longer))
	}
	return 0.0
}

// Levenshtein scores by normalized edit distance: 1 - dist/maxLen.
func Levenshtein(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}
	dist := editDistance(ra, rb)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	return 1.0 - float64(dist)/float64(longest)
}

// editDistance computes the Levenshtein distance with a two-row table.
func editDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Jaro computes the Jaro similarity: character matches within a sliding
// window, discounted by transpositions.
func Jaro(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	window := len(ra)
	if len(rb) > window {
		window = len(rb)
	}
	window = window/2 - 1
	if window < 0 {
		window = 0
	}

	aMatched := make([]bool, len(ra))
	bMatched := make([]bool, len(rb))
	matches := 0

	for i := range ra {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window + 1
		if hi > len(rb) {
			hi = len(rb)
		}
		for j := lo; j < hi; j++ {
			if bMatched[j] || ra[i] != rb[j] {
				continue
			}
			aMatched[i] = true
			bMatched[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	j := 0
	for i := range ra {
		if !aMatched[i] {
			continue
		}
		for !bMatched[j] {
			j++
		}
		if ra[i] != rb[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	t := float64(transpositions) / 2.0
	return (m/float64(len(ra)) + m/float64(len(rb)) + (m-t)/m) / 3.0
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
