package match

import (
	"github.com/nidhogg/findit/internal/text"
)

const (
	// DefaultThreshold is the minimum composite score (0-100) a match needs.
	DefaultThreshold = 40.0
	DefaultWorkers   = 8
	// batchSize is how many candidates one worker embeds and scores at once.
	batchSize = 16
)

// Config is the engine's scoring configuration. Build it once and pass it
// through Validate; the engine never revalidates a stored Config.
type Config struct {
	// Preset selects built-in weights when Weights is nil.
	Preset  string
	Weights Weights
	// Threshold is used as given: the zero value keeps every candidate.
	// DefaultConfig starts from DefaultThreshold.
	Threshold float64
	Workers   int
	// StemTerms folds TF-IDF terms to their Porter2 stem.
	StemTerms  bool
	Vocabulary text.Vocabulary
}

// DefaultConfig is the freeTextOnly preset at threshold 40.
func DefaultConfig() Config {
	c, _ := Config{Threshold: DefaultThreshold}.Validate()
	return c
}

// Validate fills defaults and checks the configuration, returning the
// normalized copy the engine uses.
func (c Config) Validate() (Config, error) {
	out := c
	switch {
	case c.Weights != nil:
		w, err := c.Weights.Normalize()
		if err != nil {
			return Config{}, invalidf("weights: %v", err)
		}
		out.Weights = w
		if out.Preset == "" {
			out.Preset = PresetCustom
		}
	default:
		if out.Preset == "" {
			out.Preset = DefaultPreset
		}
		w, ok := Preset(out.Preset)
		if !ok {
			return Config{}, invalidf("unknown preset %q", out.Preset)
		}
		out.Weights = w
	}
	if c.Threshold < 0 || c.Threshold > 100 {
		return Config{}, invalidf("threshold must be within 0-100, got %g", c.Threshold)
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.Vocabulary.Colors == nil || out.Vocabulary.Brands == nil {
		out.Vocabulary = text.DefaultVocabulary()
	}
	return out, nil
}

func (c Config) normalizer() text.Normalizer {
	return text.Normalizer{Stem: c.StemTerms}
}

// Option overrides part of the engine's Config for a single call.
type Option func(*Config)

// WithPreset switches to a built-in preset.
func WithPreset(name string) Option {
	return func(c *Config) {
		c.Preset = name
		c.Weights = nil
	}
}

// WithWeights uses custom weights. They are validated when the call starts.
func WithWeights(w Weights) Option {
	return func(c *Config) {
		c.Weights = w
		c.Preset = PresetCustom
	}
}

// WithThreshold changes the minimum score.
func WithThreshold(t float64) Option {
	return func(c *Config) { c.Threshold = t }
}

// WithWorkers bounds scoring concurrency.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}
