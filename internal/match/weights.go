package match

import (
	"fmt"
	"math"
	"sort"
)

// Signal names one independent similarity measurement.
type Signal string

const (
	SignalSemantic  Signal = "semantic"
	SignalKeyword   Signal = "keyword"
	SignalCategory  Signal = "category"
	SignalLocation  Signal = "location"
	SignalDate      Signal = "date"
	SignalString    Signal = "string"
	SignalTFIDF     Signal = "tfidf"
	SignalFeature   Signal = "feature"
	SignalAttribute Signal = "attribute"
)

// Signals lists every signal in the order scores are summed.
var Signals = []Signal{
	SignalSemantic,
	SignalKeyword,
	SignalCategory,
	SignalLocation,
	SignalDate,
	SignalString,
	SignalTFIDF,
	SignalFeature,
	SignalAttribute,
}

func knownSignal(s Signal) bool {
	for _, k := range Signals {
		if k == s {
			return true
		}
	}
	return false
}

// Weights maps signals to their share of the composite score.
type Weights map[Signal]float64

const sumTolerance = 1e-6

// Normalize validates w and returns a copy summing to 1. It accepts weights
// summing to 1 or to 100; anything else, unknown signals and negative
// weights are rejected.
func (w Weights) Normalize() (Weights, error) {
	if len(w) == 0 {
		return nil, fmt.Errorf("no weights given")
	}
	sum := 0.0
	for s, v := range w {
		if !knownSignal(s) {
			return nil, fmt.Errorf("unknown signal %q", s)
		}
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("weight for %q must be a non-negative number, got %v", s, v)
		}
		sum += v
	}
	var scale float64
	switch {
	case math.Abs(sum-1) <= sumTolerance:
		scale = 1
	case math.Abs(sum-100) <= 100*sumTolerance:
		scale = 100
	default:
		return nil, fmt.Errorf("weights must sum to 1 or 100, got %g", sum)
	}
	return w.scaled(scale), nil
}

func (w Weights) scaled(by float64) Weights {
	out := make(Weights, len(w))
	for s, v := range w {
		out[s] = v / by
	}
	return out
}

func (w Weights) sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Active returns the signals with a positive weight, in summation order.
func (w Weights) Active() []Signal {
	out := make([]Signal, 0, len(w))
	for _, s := range Signals {
		if w[s] > 0 {
			out = append(out, s)
		}
	}
	return out
}

// ParseWeights converts a name->weight map (as read from config or JSON)
// into normalized Weights.
func ParseWeights(raw map[string]float64) (Weights, error) {
	w := make(Weights, len(raw))
	for name, v := range raw {
		w[Signal(name)] = v
	}
	return w.Normalize()
}

// Preset names.
const (
	PresetFreeTextOnly            = "freeTextOnly"
	PresetStructuredAttributeRich = "structuredAttributeRich"
	PresetCustom                  = "custom"
)

// DefaultPreset is used when neither a preset nor weights are configured.
const DefaultPreset = PresetFreeTextOnly

var presets = map[string]Weights{
	// Short free-text reports: lean on the embedding model.
	PresetFreeTextOnly: {
		SignalSemantic: 0.60,
		SignalKeyword:  0.15,
		SignalCategory: 0.10,
		SignalLocation: 0.10,
		SignalDate:     0.05,
	},
	// Attribute-rich reports. The raw shares add up to 1.2 and are rescaled
	// so the composite stays on the 0-100 scale.
	PresetStructuredAttributeRich: func() Weights {
		raw := Weights{
			SignalString:    0.40,
			SignalTFIDF:     0.30,
			SignalFeature:   0.30,
			SignalAttribute: 0.20,
		}
		return raw.scaled(raw.sum())
	}(),
}

// Preset returns a copy of the named preset's weights.
func Preset(name string) (Weights, bool) {
	w, ok := presets[name]
	if !ok {
		return nil, false
	}
	return w.scaled(1), true
}

// PresetNames lists the built-in presets alphabetically.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
