package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Nil(t, Tokenize(""))
	assert.Equal(t,
		[]string{"lost", "my", "ids", "at", "the", "caf", "2", "items"},
		Tokenize("  Lost my ID's at the CAF!   2 items\n"),
	)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"the and with", nil},
		{"Blue leather wallet with ID cards", []string{"blue", "leather", "wallet", "cards"}},
		{"blue wallet found with some cards", []string{"blue", "wallet", "found", "cards"}},
		{"iPhone-13, cracked screen.", []string{"iphone13", "cracked", "screen"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(tt.in)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizerStem(t *testing.T) {
	n := Normalizer{Stem: true}
	assert.Equal(t, []string{"wallet", "card"}, n.Tokens("wallets cards"))
}

func TestSetOverlap(t *testing.T) {
	a := NewSet("blue", "wallet", "cards")
	b := NewSet("wallet", "cards", "found", "keys")
	assert.Equal(t, 2, a.Overlap(b))
	assert.Equal(t, 2, b.Overlap(a))
	assert.Equal(t, 0, a.Overlap(NewSet()))
}

func TestExtractFeatures(t *testing.T) {
	f := ExtractFeatures("Red Sony headphones, 2 cushions, charging case, HP laptop sticker")

	assert.True(t, f.Colors.Has("red"))
	assert.True(t, f.Brands.Has("sony"))
	assert.True(t, f.Brands.Has("hp"))
	assert.True(t, f.Numbers.Has("2"))
	assert.True(t, f.Adjectives.Has("charging"))
	assert.True(t, f.Nouns.Has("headphones"))
	assert.True(t, f.Nouns.Has("laptop"))
	assert.False(t, f.Nouns.Has("red"), "short tokens are not nouns")
	assert.False(t, f.Colors.Has("reddish"), "matching is exact, not substring")
}

func TestExtractFeaturesEmpty(t *testing.T) {
	f := ExtractFeatures("")
	assert.Empty(t, f.Colors)
	assert.Empty(t, f.Nouns)
}

func TestVocabularyExtend(t *testing.T) {
	v := DefaultVocabulary().Extend([]string{"Teal"}, []string{" Garmin "})
	f := v.Extract("teal garmin watch")
	assert.True(t, f.Colors.Has("teal"))
	assert.True(t, f.Brands.Has("garmin"))
	assert.False(t, DefaultVocabulary().Colors.Has("teal"))
}
