// Package text turns free-text item descriptions into tokens and coarse
// features for the lexical scorers.
package text

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/surgebase/porter2"
)

// MinTokenLength is the shortest token Normalize keeps; tokens of this length
// or less are dropped.
const MinTokenLength = 3

// Tokenize lowercases s, strips punctuation, collapses whitespace and splits
// into words. Stopwords and short tokens are kept.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

// Normalizer filters tokens for the similarity scorers.
type Normalizer struct {
	// Stem folds each kept token to its Porter2 stem.
	Stem bool
}

// Tokens returns the ordered tokens of s with stopwords and tokens of
// MinTokenLength runes or fewer removed.
func (n Normalizer) Tokens(s string) []string {
	words := Tokenize(s)
	if len(words) == 0 {
		return nil
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) <= MinTokenLength || IsStopword(w) {
			continue
		}
		if n.Stem {
			w = porter2.Stem(w)
		}
		out = append(out, w)
	}
	return out
}

// Normalize runs the default (non-stemming) normalizer.
func Normalize(s string) []string {
	return Normalizer{}.Tokens(s)
}

// Set is an unordered set of tokens.
type Set map[string]struct{}

// NewSet builds a set from tokens.
func NewSet(tokens ...string) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// Add inserts a token.
func (s Set) Add(t string) { s[t] = struct{}{} }

// Has reports membership.
func (s Set) Has(t string) bool {
	_, ok := s[t]
	return ok
}

// Overlap counts the tokens present in both sets.
func (s Set) Overlap(other Set) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for t := range small {
		if large.Has(t) {
			n++
		}
	}
	return n
}
