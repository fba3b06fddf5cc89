package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// LocalProvider calls an Ollama-compatible /api/embeddings endpoint, one
// request per text.
type LocalProvider struct {
	endpoint   string
	model      string
	configured int
	observed   atomic.Int64
	client     *http.Client
}

// NewLocalProvider creates a LocalProvider. A nil client uses
// http.DefaultClient.
func NewLocalProvider(cfg Config, client *http.Client) *LocalProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &LocalProvider{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		configured: cfg.Dimension,
		client:     client,
	}
}

type localRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type localResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed embeds each text in turn and fails on the first error.
func (p *LocalProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := p.embedOne(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	if n := len(vectors[0]); n > 0 {
		p.observed.CompareAndSwap(0, int64(n))
	}
	return vectors, nil
}

func (p *LocalProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(localRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result localResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("embedding: empty vector for model %q", p.model)
	}
	return result.Embedding, nil
}

// Dimension returns the dimension seen on the first successful response, or
// the configured one before that.
func (p *LocalProvider) Dimension() int {
	if n := p.observed.Load(); n > 0 {
		return int(n)
	}
	return p.configured
}

// Model is the provider kind and model name, e.g. "local/nomic-embed-text".
func (p *LocalProvider) Model() string { return "local/" + p.model }
