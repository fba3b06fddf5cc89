// Package similarity holds the pure scoring primitives the matcher combines.
// Every scorer is total: it returns a value in [0,1] and never panics on empty
// input.
package similarity

import (
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"github.com/nidhogg/findit/internal/phonetic"
)

// StringWeights blends the three string primitives into one score.
type StringWeights struct {
	Edit      float64
	Metaphone float64
	Soundex   float64
}

// DefaultStringWeights is the canonical 0.4 / 0.3 / 0.3 blend.
var DefaultStringWeights = StringWeights{Edit: 0.4, Metaphone: 0.3, Soundex: 0.3}

func prepare(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// EditScore is 1 - levenshtein(a, b) / max(len(a), len(b)), case-insensitive
// and measured in runes.
func EditScore(a, b string) float64 {
	a, b = prepare(a), prepare(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	d := edlib.LevenshteinDistance(a, b)
	return clamp01(1 - float64(d)/float64(maxLen))
}

// MetaphoneMatch is 1 when both strings share a Metaphone code.
func MetaphoneMatch(a, b string) float64 {
	return codesMatch(a, b, phonetic.Metaphone)
}

// SoundexMatch is 1 when both strings share a Soundex code.
func SoundexMatch(a, b string) float64 {
	return codesMatch(a, b, phonetic.Soundex)
}

// codesMatch compares phonetic codes. Strings without letters (serial
// numbers, sizes like "42") have no code and fall back to exact equality.
func codesMatch(a, b string, encode func(string) string) float64 {
	a, b = prepare(a), prepare(b)
	if a == "" || b == "" {
		return 0
	}
	ca, cb := encode(a), encode(b)
	if ca == "" || cb == "" {
		if a == b {
			return 1
		}
		return 0
	}
	if ca == cb {
		return 1
	}
	return 0
}

// Combine blends edit distance and both phonetic matches with w.
func (w StringWeights) Combine(a, b string) float64 {
	pa, pb := prepare(a), prepare(b)
	if pa == "" || pb == "" {
		return 0
	}
	if pa == pb {
		return 1
	}
	return clamp01(w.Edit*EditScore(a, b) +
		w.Metaphone*MetaphoneMatch(a, b) +
		w.Soundex*SoundexMatch(a, b))
}

// Combined is DefaultStringWeights.Combine.
func Combined(a, b string) float64 {
	return DefaultStringWeights.Combine(a, b)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
