package similarity

import "github.com/nidhogg/findit/internal/text"

// KeywordOverlap is |A ∩ B| / max(|A|, |B|) over two token sets.
func KeywordOverlap(a, b text.Set) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(a.Overlap(b)) / float64(max(len(a), len(b)))
}

// Keyword scores two free-text strings by normalized token overlap.
func Keyword(a, b string) float64 {
	return KeywordOverlap(text.NewSet(text.Normalize(a)...), text.NewSet(text.Normalize(b)...))
}

// FeatureWeights weighs each extracted feature class.
type FeatureWeights struct {
	Brands  float64
	Colors  float64
	Numbers float64
	Nouns   float64
}

// DefaultFeatureWeights favours brands and colours over generic nouns.
var DefaultFeatureWeights = FeatureWeights{Brands: 0.4, Colors: 0.3, Numbers: 0.2, Nouns: 0.1}

// Features sums the weighted overlap of each feature class that both sides
// mention. Classes missing on either side contribute nothing.
func (w FeatureWeights) Features(a, b text.Features) float64 {
	score := w.Brands*KeywordOverlap(a.Brands, b.Brands) +
		w.Colors*KeywordOverlap(a.Colors, b.Colors) +
		w.Numbers*KeywordOverlap(a.Numbers, b.Numbers) +
		w.Nouns*KeywordOverlap(a.Nouns, b.Nouns)
	return clamp01(score)
}

// FeatureOverlap is DefaultFeatureWeights.Features.
func FeatureOverlap(a, b text.Features) float64 {
	return DefaultFeatureWeights.Features(a, b)
}
