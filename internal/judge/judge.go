// Package judge provides advisory fuzzy matching of free-text answers.
// The operator's grading decision stays authoritative; these helpers only
// assist it.
package judge

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultThreshold is the bigram similarity above which two answers are
// considered equivalent.
const DefaultThreshold = 0.8

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips diacritical marks, maps the Vietnamese đ to d
// (it carries no combining mark, so NFD alone leaves it intact), and collapses
// whitespace runs to single spaces.
func Normalize(text string) string {
	lowered := strings.ToLower(text)
	lowered = strings.ReplaceAll(lowered, "đ", "d")
	stripped, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		stripped = lowered
	}
	return strings.Join(strings.Fields(stripped), " ")
}

// Similarity returns the Dice coefficient over character bigrams of the
// normalized inputs, in [0,1].
func Similarity(candidate, reference string) float64 {
	a := Normalize(candidate)
	b := Normalize(reference)
	if a == b {
		return 1
	}

	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	overlap := 0
	for gram, count := range ba {
		if other, ok := bb[gram]; ok {
			overlap += min(count, other)
		}
	}
	return 2 * float64(overlap) / float64(total(ba)+total(bb))
}

// IsCorrect reports whether candidate matches reference at DefaultThreshold.
func IsCorrect(candidate, reference string) bool {
	return IsCorrectThreshold(candidate, reference, DefaultThreshold)
}

// IsCorrectThreshold is IsCorrect with a caller-chosen similarity threshold.
func IsCorrectThreshold(candidate, reference string, threshold float64) bool {
	if Normalize(candidate) == Normalize(reference) {
		return true
	}
	return Similarity(candidate, reference) >= threshold
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	grams := make(map[string]int)
	for i := 0; i+1 < len(runes); i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

func total(grams map[string]int) int {
	n := 0
	for _, count := range grams {
		n += count
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
