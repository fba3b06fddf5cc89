package similarity

import (
	"strings"
	"unicode"
)

// MinLocationTokenLength drops tokens like "at", "st" and unit numbers.
const MinLocationTokenLength = 3

// LocationTokens splits a free-text place on commas and whitespace and keeps
// the lowercased tokens of at least MinLocationTokenLength runes.
func LocationTokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(f)) >= MinLocationTokenLength {
			out = append(out, f)
		}
	}
	return out
}

// Location is the share of the query's unique location tokens that also
// appear in the candidate's location. The denominator is always the query
// side.
func Location(query, candidate string) float64 {
	return LocationTokensOverlap(LocationTokens(query), LocationTokens(candidate))
}

// LocationTokensOverlap is Location over pre-split token lists.
func LocationTokensOverlap(query, candidate []string) float64 {
	if len(query) == 0 || len(candidate) == 0 {
		return 0
	}
	have := make(map[string]struct{}, len(candidate))
	for _, t := range candidate {
		have[t] = struct{}{}
	}
	unique := make(map[string]struct{}, len(query))
	hits := 0
	for _, t := range query {
		if _, dup := unique[t]; dup {
			continue
		}
		unique[t] = struct{}{}
		if _, ok := have[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(unique))
}
