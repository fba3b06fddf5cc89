package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKeyUnordered(t *testing.T) {
	assert.Equal(t, "a1_b2", PairKey("a1", "b2"))
	assert.Equal(t, "a1_b2", PairKey("b2", "a1"))
}

func TestDedupeKeepsHigherScore(t *testing.T) {
	key := PairKey("lost-1", "found-1")
	results := []Result{
		{PairKey: key, CandidateID: "found-1", Score: 72},
		{PairKey: PairKey("lost-1", "found-2"), CandidateID: "found-2", Score: 50},
		{PairKey: key, CandidateID: "lost-1", Score: 75},
	}
	out := Dedupe(results)
	require.Len(t, out, 2)
	SortResults(out)
	assert.Equal(t, 75.0, out[0].Score)
	assert.Equal(t, key, out[0].PairKey)
}

func TestSortResultsTieBreak(t *testing.T) {
	rs := []Result{
		{CandidateID: "c", PairKey: "x_c", Score: 50},
		{CandidateID: "a", PairKey: "x_a", Score: 50},
		{CandidateID: "b", PairKey: "x_b", Score: 90},
		{CandidateID: "a", PairKey: "a_w", Score: 50},
	}
	SortResults(rs)
	got := make([]string, len(rs))
	for i, r := range rs {
		got[i] = r.PairKey
	}
	assert.Equal(t, []string{"x_b", "a_w", "x_a", "x_c"}, got)
}

func TestAboveThresholdInclusive(t *testing.T) {
	rs := []Result{{Score: 39.999}, {Score: 40}, {Score: 41}}
	assert.Len(t, AboveThreshold(rs, 40), 2)
	assert.Len(t, rs, 3)
}

func TestWeightsNormalize(t *testing.T) {
	w, err := Weights{SignalSemantic: 60, SignalKeyword: 15, SignalCategory: 10, SignalLocation: 10, SignalDate: 5}.Normalize()
	require.NoError(t, err)
	assert.InDelta(t, 0.6, w[SignalSemantic], 1e-12)

	_, err = Weights{SignalSemantic: 0.7}.Normalize()
	assert.Error(t, err)
	_, err = Weights{"vibes": 1}.Normalize()
	assert.Error(t, err)
	_, err = Weights{SignalSemantic: 1.5, SignalDate: -0.5}.Normalize()
	assert.Error(t, err)
	_, err = Weights{}.Normalize()
	assert.Error(t, err)
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights(map[string]float64{"string": 0.5, "tfidf": 0.5})
	require.NoError(t, err)
	assert.Equal(t, []Signal{SignalString, SignalTFIDF}, w.Active())
}

func TestPresetsSumToOne(t *testing.T) {
	for _, name := range PresetNames() {
		w, ok := Preset(name)
		require.True(t, ok)
		assert.InDelta(t, 1.0, w.sum(), 1e-9, name)
	}
	w, _ := Preset(PresetStructuredAttributeRich)
	assert.InDelta(t, 1.0/3, w[SignalString], 1e-12)
	assert.InDelta(t, 1.0/6, w[SignalAttribute], 1e-12)

	// callers get a copy
	w[SignalString] = 0
	again, _ := Preset(PresetStructuredAttributeRich)
	assert.NotZero(t, again[SignalString])
}

func TestConfigValidate(t *testing.T) {
	c := DefaultConfig()
	assert.Equal(t, PresetFreeTextOnly, c.Preset)
	assert.Equal(t, DefaultThreshold, c.Threshold)
	assert.Equal(t, DefaultWorkers, c.Workers)
	assert.NotEmpty(t, c.Vocabulary.Brands)

	c, err := Config{Weights: Weights{SignalDate: 1}, Threshold: 10}.Validate()
	require.NoError(t, err)
	assert.Equal(t, PresetCustom, c.Preset)

	_, err = Config{Threshold: -1}.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)

	zero, err := Config{Preset: PresetStructuredAttributeRich}.Validate()
	require.NoError(t, err)
	assert.Zero(t, zero.Threshold)
}
