// Package embedding turns item descriptions into dense vectors through an
// external model, with a bounded in-process cache in front of it.
package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Provider generates vector embeddings from text. Implementations return one
// vector per input text, in input order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Namespace names the vector space a provider embeds into: its kind, model
// and dimension. Vectors from different namespaces are not comparable and
// must not share a cache.
func Namespace(p Provider) string {
	name := "unknown"
	if m, ok := p.(interface{ Model() string }); ok {
		name = m.Model()
	}
	return fmt.Sprintf("%s:%d", name, p.Dimension())
}

// Config holds embedding provider and cache configuration.
type Config struct {
	Provider  string `json:"provider"` // "api", "local" or "hash"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`

	// Timeout bounds a single provider request, e.g. "15s".
	Timeout string `json:"timeout"`
	// CacheSize is the number of texts kept in the in-process LRU.
	CacheSize int `json:"cache_size"`
	// SharedCacheTTL enables the Redis second-level cache when non-empty, e.g. "168h".
	SharedCacheTTL string `json:"shared_cache_ttl"`
}

const (
	defaultTimeout   = 15 * time.Second
	DefaultCacheSize = 4096
)

// RequestTimeout parses Timeout, falling back to 15s.
func (c Config) RequestTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && d > 0 {
		return d
	}
	return defaultTimeout
}

// SharedTTL parses SharedCacheTTL. A zero duration disables the shared cache.
func (c Config) SharedTTL() (time.Duration, error) {
	if strings.TrimSpace(c.SharedCacheTTL) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.SharedCacheTTL)
	if err != nil {
		return 0, fmt.Errorf("embedding: shared_cache_ttl: %w", err)
	}
	return d, nil
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg Config) (Provider, error) {
	client := &http.Client{Timeout: cfg.RequestTimeout()}
	switch strings.ToLower(cfg.Provider) {
	case "", "api", "openai":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedding: api provider needs an endpoint")
		}
		return NewAPIProvider(cfg, client), nil
	case "local", "ollama":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedding: local provider needs an endpoint")
		}
		return NewLocalProvider(cfg, client), nil
	case "hash":
		return NewHashProvider(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}
