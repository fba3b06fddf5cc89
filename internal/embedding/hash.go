package embedding

import (
	"context"
	"crypto/sha256"
)

const defaultHashDimension = 256

// HashProvider derives a deterministic pseudo-embedding from the sha256 of the
// text. It has no semantic value; it lets the engine run offline and in tests
// without a model.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a HashProvider with the given dimension (256 when
// dimension <= 0).
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = defaultHashDimension
	}
	return &HashProvider{dimension: dimension}
}

// Embed never fails.
func (p *HashProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		sum := sha256.Sum256([]byte(text))
		vec := make([]float32, p.dimension)
		for j := range vec {
			vec[j] = float32(sum[j%len(sum)])/127.5 - 1
		}
		NormalizeL2(vec)
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the configured dimension.
func (p *HashProvider) Dimension() int { return p.dimension }

// Model identifies the hash embedding space.
func (p *HashProvider) Model() string { return "hash" }
