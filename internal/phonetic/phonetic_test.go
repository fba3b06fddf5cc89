package phonetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSoundex(t *testing.T) {
	tests := map[string]string{
		"Robert":   "R163",
		"Rupert":   "R163",
		"Ashcraft": "A261",
		"Tymczak":  "T522",
		"Pfister":  "P236",
		"Lee":      "L000",
		"":         "",
		"1234 !!":  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Soundex(in), "Soundex(%q)", in)
	}
}

func TestSoundexCaseInsensitive(t *testing.T) {
	assert.Equal(t, Soundex("samsung"), Soundex("SAMSUNG"))
}

func TestMetaphone(t *testing.T) {
	tests := map[string]string{
		"knight":  "NT",
		"Samsung": "SMSNK",
		"phone":   "FN",
		"wallet":  "WLT",
		"Thomas":  "0MS",
		"school":  "SKL",
		"xerox":   "SRKS",
		"":        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Metaphone(in), "Metaphone(%q)", in)
	}
}

func TestMetaphoneSoundAlikes(t *testing.T) {
	assert.Equal(t, Metaphone("Samsung"), Metaphone("Samsng"))
	assert.Equal(t, Metaphone("phone"), Metaphone("fone"))
	assert.Equal(t, "FN KS", Metaphone("phone case"))
}
