package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SharedStore is a second-level cache shared between processes.
type SharedStore interface {
	Get(ctx context.Context, text string) ([]float32, bool, error)
	Set(ctx context.Context, text string, vec []float32) error
	Purge(ctx context.Context) error
}

// LoadFunc produces the vector for a text on a cache miss.
type LoadFunc func(ctx context.Context, text string) ([]float32, error)

// Cache maps literal texts to vectors. Lookups hit a bounded LRU first and the
// optional shared store second; concurrent misses for the same text share one
// load. Returned slices are shared and must not be modified.
type Cache struct {
	lru    *lru.Cache[string, []float32]
	group  singleflight.Group
	shared SharedStore
	// admit vets vectors read from shared before they enter the LRU.
	admit  func([]float32) ([]float32, error)
	logger *zap.Logger
}

// NewCache creates a cache holding up to size texts. shared may be nil.
func NewCache(size int, shared SharedStore, logger *zap.Logger) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding: create lru: %w", err)
	}
	return &Cache{lru: l, shared: shared, logger: logger}, nil
}

// Lookup returns a cached vector without loading.
func (c *Cache) Lookup(ctx context.Context, text string) ([]float32, bool) {
	if vec, ok := c.lru.Get(text); ok {
		return vec, true
	}
	if c.shared == nil {
		return nil, false
	}
	vec, ok, err := c.shared.Get(ctx, text)
	if err != nil {
		c.logger.Debug("shared embedding cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if c.admit != nil {
		if vec, err = c.admit(vec); err != nil {
			c.logger.Debug("ignoring shared cached embedding", zap.Error(err))
			return nil, false
		}
	}
	c.lru.Add(text, vec)
	return vec, true
}

// Add stores vec under text in both levels.
func (c *Cache) Add(ctx context.Context, text string, vec []float32) {
	c.lru.Add(text, vec)
	if c.shared == nil {
		return
	}
	if err := c.shared.Set(ctx, text, vec); err != nil {
		c.logger.Debug("shared embedding cache write failed", zap.Error(err))
	}
}

// Get returns the vector for text, calling load on a miss. A failed load is
// not cached.
func (c *Cache) Get(ctx context.Context, text string, load LoadFunc) ([]float32, error) {
	if vec, ok := c.Lookup(ctx, text); ok {
		return vec, nil
	}
	v, err, _ := c.group.Do(text, func() (any, error) {
		if vec, ok := c.lru.Get(text); ok {
			return vec, nil
		}
		vec, err := load(ctx, text)
		if err != nil {
			return nil, err
		}
		c.Add(ctx, text, vec)
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}

// Purge empties both levels.
func (c *Cache) Purge(ctx context.Context) error {
	c.lru.Purge()
	if c.shared == nil {
		return nil
	}
	if err := c.shared.Purge(ctx); err != nil {
		return fmt.Errorf("embedding: purge shared cache: %w", err)
	}
	return nil
}

// Len is the number of texts held in process.
func (c *Cache) Len() int {
	return c.lru.Len()
}
