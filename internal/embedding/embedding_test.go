package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nidhogg/findit/internal/item"
	"github.com/nidhogg/findit/internal/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingProvider returns fixed vectors and counts model calls.
type countingProvider struct {
	dim   int
	calls atomic.Int32
	texts atomic.Int32
	fail  atomic.Bool
	delay time.Duration
}

func (p *countingProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.calls.Add(1)
	p.texts.Add(int32(len(texts)))
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.fail.Load() {
		return nil, errors.New("model unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, p.dim)
		vec[len(t)%p.dim] = 2
		out[i] = vec
	}
	return out, nil
}

func (p *countingProvider) Dimension() int { return p.dim }

func newTestEmbedder(t *testing.T, p Provider) *Embedder {
	t.Helper()
	cache, err := NewCache(16, nil, zap.NewNop())
	require.NoError(t, err)
	return NewEmbedder(p, cache, zap.NewNop())
}

func TestAPIProviderEmbed(t *testing.T) {
	var got apiRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		// out of order on purpose
		json.NewEncoder(w).Encode(apiResponse{Data: []apiEmbeddingData{
			{Index: 1, Embedding: []float32{0, 1, 0}},
			{Index: 0, Embedding: []float32{0.1, 0.2, 0.3}},
		}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAPIProvider(Config{Endpoint: srv.URL, Model: "test-model", APIKey: "secret"}, srv.Client())
	vectors, err := p.Embed(context.Background(), []string{"hello", "world"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, []string{"hello", "world"}, got.Input)
	assert.Equal(t, 3, p.Dimension())
}

func TestAPIProviderEmbed_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAPIProvider(Config{Endpoint: srv.URL}, nil)
	_, err := p.Embed(context.Background(), []string{"hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	vectors, err := p.Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestAPIProviderDimension_Fallback(t *testing.T) {
	p := NewAPIProvider(Config{Endpoint: "http://unused", Dimension: 256}, nil)
	assert.Equal(t, 256, p.Dimension())
}

func TestLocalProviderEmbed(t *testing.T) {
	var prompts []string
	var mu sync.Mutex
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req localRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		json.NewEncoder(w).Encode(localResponse{Embedding: []float32{1, 0}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewLocalProvider(Config{Endpoint: srv.URL, Model: "nomic-embed-text", Dimension: 768}, nil)
	assert.Equal(t, 768, p.Dimension())
	vectors, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
	assert.Equal(t, []string{"a", "b"}, prompts)
	assert.Equal(t, 2, p.Dimension())
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{Provider: "hash", Dimension: 8})
	require.NoError(t, err)
	assert.Equal(t, 8, p.Dimension())

	_, err = NewProvider(Config{Provider: "api"})
	assert.Error(t, err)
	_, err = NewProvider(Config{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestHashProviderDeterministic(t *testing.T) {
	p := NewHashProvider(32)
	a, err := p.Embed(context.Background(), []string{"blue wallet", "blue wallet", "red bag"})
	require.NoError(t, err)
	assert.Equal(t, a[0], a[1])
	assert.NotEqual(t, a[0], a[2])
	assert.Len(t, a[0], 32)
}

func TestEmbedderCachesByLiteralText(t *testing.T) {
	p := &countingProvider{dim: 4}
	e := newTestEmbedder(t, p)
	ctx := context.Background()

	v1 := e.Vector(ctx, "blue wallet")
	v2 := e.Vector(ctx, "blue wallet")
	assert.Equal(t, v1, v2)
	assert.EqualValues(t, 1, p.calls.Load())

	e.Vector(ctx, "Blue wallet")
	assert.EqualValues(t, 2, p.calls.Load())
	assert.Equal(t, 2, e.Cache().Len())
}

func TestEmbedderNormalizes(t *testing.T) {
	e := newTestEmbedder(t, &countingProvider{dim: 4})
	vec := e.Vector(context.Background(), "abc")
	assert.InDelta(t, 1.0, float64(vec[3]), 1e-6)
}

func TestEmbedderFailureReturnsZeroVectorUncached(t *testing.T) {
	p := &countingProvider{dim: 4}
	p.fail.Store(true)
	e := newTestEmbedder(t, p)
	ctx := context.Background()

	vec := e.Vector(ctx, "phone")
	assert.Equal(t, []float32{0, 0, 0, 0}, vec)
	assert.Equal(t, 0, e.Cache().Len())
	assert.Equal(t, 0.0, e.Similarity(ctx, "phone", "phone"))

	p.fail.Store(false)
	assert.False(t, IsZero(e.Vector(ctx, "phone")))
}

func TestEmbedderRejectsWrongDimension(t *testing.T) {
	p := &countingProvider{dim: 4}
	e := NewEmbedder(&shortProvider{p}, nil, nil)
	assert.True(t, IsZero(e.Vector(context.Background(), "x")))
}

type shortProvider struct{ *countingProvider }

func (s *shortProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1, 2}}, nil
}

func TestEmbedderEmptyText(t *testing.T) {
	p := &countingProvider{dim: 3}
	e := newTestEmbedder(t, p)
	assert.Equal(t, []float32{0, 0, 0}, e.Vector(context.Background(), "  "))
	assert.Equal(t, 0.0, e.Similarity(context.Background(), "", "wallet"))
	assert.EqualValues(t, 0, p.calls.Load())
}

func TestEmbedderCoalescesConcurrentMisses(t *testing.T) {
	p := &countingProvider{dim: 4, delay: 50 * time.Millisecond}
	e := newTestEmbedder(t, p)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Vector(context.Background(), "same text")
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, p.calls.Load())
}

func TestEmbedderVectorsBatchesMisses(t *testing.T) {
	p := &countingProvider{dim: 4}
	e := newTestEmbedder(t, p)
	ctx := context.Background()
	e.Vector(ctx, "cached")

	out := e.Vectors(ctx, []string{"cached", "a", "bb", "a", ""})
	require.Len(t, out, 5)
	assert.EqualValues(t, 2, p.calls.Load())
	assert.EqualValues(t, 3, p.texts.Load()) // "cached", then "a" and "bb"
	assert.Equal(t, out[1], out[3])
	assert.True(t, IsZero(out[4]))
}

func TestEmbedderRefresh(t *testing.T) {
	p := &countingProvider{dim: 4}
	e := newTestEmbedder(t, p)
	ctx := context.Background()

	it := &item.Item{Description: "black umbrella"}
	vec := e.Refresh(ctx, it)
	cached, ok := it.FreshEmbedding()
	require.True(t, ok)
	assert.Equal(t, vec, cached)

	it.SetDescription("black umbrella with wooden handle")
	_, ok = it.FreshEmbedding()
	assert.False(t, ok)
	e.Refresh(ctx, it)
	_, ok = it.FreshEmbedding()
	assert.True(t, ok)
}

func TestEmbedderClearCache(t *testing.T) {
	p := &countingProvider{dim: 4}
	e := newTestEmbedder(t, p)
	ctx := context.Background()
	e.Vector(ctx, "x")
	require.NoError(t, e.ClearCache(ctx))
	assert.Equal(t, 0, e.Cache().Len())
	e.Vector(ctx, "x")
	assert.EqualValues(t, 2, p.calls.Load())
}

type mapStore struct {
	mu sync.Mutex
	m  map[string][]float32
}

func (s *mapStore) Get(_ context.Context, text string) ([]float32, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[text]
	return v, ok, nil
}

func (s *mapStore) Set(_ context.Context, text string, vec []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[text] = vec
	return nil
}

func (s *mapStore) Purge(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m = map[string][]float32{}
	return nil
}

func TestCacheSharedSecondLevel(t *testing.T) {
	shared := &mapStore{m: map[string][]float32{"warm": {1, 0}}}
	cache, err := NewCache(4, shared, nil)
	require.NoError(t, err)

	loads := 0
	load := func(context.Context, string) ([]float32, error) {
		loads++
		return []float32{0, 1}, nil
	}
	ctx := context.Background()

	v, err := cache.Get(ctx, "warm", load)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.Equal(t, 0, loads)

	_, err = cache.Get(ctx, "cold", load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
	assert.Contains(t, shared.m, "cold")

	require.NoError(t, cache.Purge(ctx))
	assert.Empty(t, shared.m)
	assert.Equal(t, 0, cache.Len())
}

func TestVectorEncoding(t *testing.T) {
	in := []float32{0.5, -1.25, 3e-7, 0}
	out, err := decodeVector(encodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
	assert.Equal(t, redisKey("hash:8", "a"), redisKey("hash:8", "a"))
	assert.NotEqual(t, redisKey("hash:8", "a"), redisKey("hash:8", "A"))
	assert.NotEqual(t, redisKey("hash:8", "a"), redisKey("api/m:8", "a"))
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "hash:8", Namespace(NewHashProvider(8)))
	assert.Equal(t, "api/text-embedding-3-small:768",
		Namespace(NewAPIProvider(Config{Model: "text-embedding-3-small", Dimension: 768}, nil)))
	assert.Equal(t, "local/nomic-embed-text:768",
		Namespace(NewLocalProvider(Config{Model: "nomic-embed-text", Dimension: 768}, nil)))
	assert.Equal(t, "unknown:3", Namespace(&countingProvider{dim: 3}))
}

func TestEmbedderIgnoresSharedVectorOfOtherDimension(t *testing.T) {
	ctx := context.Background()
	shared := &mapStore{m: map[string][]float32{"blue wallet": {1, 0, 0}}}
	cache, err := NewCache(8, shared, nil)
	require.NoError(t, err)
	provider := NewHashProvider(8)
	e := NewEmbedder(provider, cache, nil)

	fresh, err := provider.Embed(ctx, []string{"blue wallet"})
	require.NoError(t, err)

	got := e.Vector(ctx, "blue wallet")
	require.Len(t, got, 8)
	assert.InDelta(t, 1, similarity.Cosine(got, fresh[0]), 1e-6)
	assert.Len(t, shared.m["blue wallet"], 8)

	cache.lru.Purge()
	shared.m["black phone"] = []float32{0, 1}
	vecs := e.Vectors(ctx, []string{"black phone", "blue wallet"})
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 8)
	assert.Len(t, vecs[1], 8)
	assert.Len(t, shared.m["black phone"], 8)
}

func TestCacheWithoutEmbedderKeepsSharedVectors(t *testing.T) {
	shared := &mapStore{m: map[string][]float32{"keys": {1, 0, 0}}}
	cache, err := NewCache(4, shared, nil)
	require.NoError(t, err)
	vec, ok := cache.Lookup(context.Background(), "keys")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 0, 0}, vec)
}
