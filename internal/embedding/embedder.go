package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/nidhogg/findit/internal/item"
	"github.com/nidhogg/findit/internal/similarity"
	"go.uber.org/zap"
)

// Embedder is the semantic scorer's view of the model: it never fails. Model
// errors and malformed vectors degrade to a zero vector, which scores 0
// against anything.
type Embedder struct {
	provider Provider
	cache    *Cache
	logger   *zap.Logger
}

// NewEmbedder wires a provider to a cache. A nil cache gets a default-sized
// in-process one. Vectors the cache reads from its shared store are checked
// against the provider's dimension like fresh ones.
func NewEmbedder(provider Provider, cache *Cache, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache, _ = NewCache(DefaultCacheSize, nil, logger)
	}
	e := &Embedder{provider: provider, cache: cache, logger: logger}
	cache.admit = e.accept
	return e
}

// Dimension is the provider's vector length.
func (e *Embedder) Dimension() int {
	return e.provider.Dimension()
}

// Cache exposes the underlying cache.
func (e *Embedder) Cache() *Cache { return e.cache }

// Vector returns the normalized embedding of text.
func (e *Embedder) Vector(ctx context.Context, text string) []float32 {
	if strings.TrimSpace(text) == "" {
		return e.zero()
	}
	vec, err := e.cache.Get(ctx, text, e.load)
	if err != nil {
		e.logger.Warn("embedding failed, using zero vector", zap.Error(err))
		return e.zero()
	}
	return vec
}

// Vectors embeds several texts with at most one provider call for the
// misses. Results line up with texts.
func (e *Embedder) Vectors(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	var missing []string
	pending := make(map[string][]int)
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			out[i] = e.zero()
			continue
		}
		if vec, ok := e.cache.Lookup(ctx, text); ok {
			out[i] = vec
			continue
		}
		if _, seen := pending[text]; !seen {
			missing = append(missing, text)
		}
		pending[text] = append(pending[text], i)
	}
	if len(missing) == 0 {
		return out
	}

	vecs, err := e.provider.Embed(ctx, missing)
	if err == nil && len(vecs) != len(missing) {
		err = fmt.Errorf("embedding: got %d vectors for %d texts", len(vecs), len(missing))
	}
	if err != nil {
		e.logger.Warn("batch embedding failed, using zero vectors",
			zap.Int("texts", len(missing)), zap.Error(err))
	}
	for j, text := range missing {
		vec := e.zero()
		if err == nil {
			if v, verr := e.accept(vecs[j]); verr != nil {
				e.logger.Warn("discarding malformed embedding", zap.Error(verr))
			} else {
				vec = v
				e.cache.Add(ctx, text, vec)
			}
		}
		for _, i := range pending[text] {
			out[i] = vec
		}
	}
	return out
}

// Similarity is the cosine similarity of the two texts' embeddings.
func (e *Embedder) Similarity(ctx context.Context, a, b string) float64 {
	if strings.TrimSpace(a) == "" || strings.TrimSpace(b) == "" {
		return 0
	}
	return similarity.Cosine(e.Vector(ctx, a), e.Vector(ctx, b))
}

// Refresh makes sure it carries an embedding of its current description and
// returns it. A degraded (zero) vector is returned but not stored on the item.
func (e *Embedder) Refresh(ctx context.Context, it *item.Item) []float32 {
	if vec, ok := it.FreshEmbedding(); ok {
		return vec
	}
	vec := e.Vector(ctx, it.Description)
	if !IsZero(vec) {
		it.SetEmbedding(vec)
	}
	return vec
}

// ClearCache drops every cached vector.
func (e *Embedder) ClearCache(ctx context.Context) error {
	return e.cache.Purge(ctx)
}

func (e *Embedder) load(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding: got %d vectors for 1 text", len(vecs))
	}
	return e.accept(vecs[0])
}

// accept checks the dimension and returns a normalized copy.
func (e *Embedder) accept(raw []float32) ([]float32, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("embedding: empty vector")
	}
	if dim := e.provider.Dimension(); dim > 0 && len(raw) != dim {
		return nil, fmt.Errorf("embedding: vector has %d dimensions, want %d", len(raw), dim)
	}
	vec := make([]float32, len(raw))
	copy(vec, raw)
	NormalizeL2(vec)
	return vec, nil
}

func (e *Embedder) zero() []float32 {
	return make([]float32, max(e.provider.Dimension(), 0))
}

// IsZero reports whether vec has no non-zero component.
func IsZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

// NormalizeL2 scales vector to unit length in place. Zero vectors are left
// alone.
func NormalizeL2(vector []float32) {
	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	magnitude := math.Sqrt(sumSquares)
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / magnitude)
	}
}
