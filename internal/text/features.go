package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Features are the coarse signals pulled out of a description.
type Features struct {
	Colors     Set
	Brands     Set
	Numbers    Set
	Nouns      Set
	Adjectives Set
}

// Vocabulary holds the fixed word lists colors and brands are matched against.
// Entries are lowercase; matching is exact per token.
type Vocabulary struct {
	Colors Set
	Brands Set
}

// DefaultVocabulary returns the built-in color and brand lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Colors: NewSet(
			"red", "blue", "green", "yellow", "black", "white", "purple", "pink",
			"orange", "brown", "grey", "gray", "silver", "gold", "beige", "navy",
		),
		Brands: NewSet(
			"apple", "samsung", "nike", "adidas", "sony", "lg", "dell", "hp",
			"lenovo", "asus", "xiaomi", "huawei", "canon", "nikon", "google",
			"microsoft", "amazon",
		),
	}
}

// Extend returns a copy of v with extra colors and brands added.
func (v Vocabulary) Extend(colors, brands []string) Vocabulary {
	out := Vocabulary{Colors: NewSet(), Brands: NewSet()}
	for c := range v.Colors {
		out.Colors.Add(c)
	}
	for b := range v.Brands {
		out.Brands.Add(b)
	}
	for _, c := range colors {
		out.Colors.Add(strings.ToLower(strings.TrimSpace(c)))
	}
	for _, b := range brands {
		out.Brands.Add(strings.ToLower(strings.TrimSpace(b)))
	}
	return out
}

// Extract pulls features from raw text. Colors, brands and numbers come from
// every token; nouns and adjectives only from non-stopword tokens longer than
// MinTokenLength, split on an "ing"/"ed" suffix.
func (v Vocabulary) Extract(s string) Features {
	f := Features{
		Colors:     NewSet(),
		Brands:     NewSet(),
		Numbers:    NewSet(),
		Nouns:      NewSet(),
		Adjectives: NewSet(),
	}
	for _, tok := range Tokenize(s) {
		if v.Colors.Has(tok) {
			f.Colors.Add(tok)
		}
		if v.Brands.Has(tok) {
			f.Brands.Add(tok)
		}
		if isNumber(tok) {
			f.Numbers.Add(tok)
		}
		if utf8.RuneCountInString(tok) <= MinTokenLength || IsStopword(tok) {
			continue
		}
		if strings.HasSuffix(tok, "ing") || strings.HasSuffix(tok, "ed") {
			f.Adjectives.Add(tok)
		} else {
			f.Nouns.Add(tok)
		}
	}
	return f
}

var defaultVocabulary = DefaultVocabulary()

// ExtractFeatures runs Extract with the default vocabulary.
func ExtractFeatures(s string) Features {
	return defaultVocabulary.Extract(s)
}

func isNumber(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
