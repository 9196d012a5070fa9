// Package ollamaembed provides an embeddings.Provider backed by a local
// Ollama daemon's /api/embeddings endpoint. Ollama has no official Go SDK,
// so this client is hand-rolled against its documented HTTP API, matching
// how the teacher's local-daemon chat dialect is built.
package ollamaembed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fenwick-ai/agentrt/internal/memory/embeddings"
)

// Provider implements embeddings.Provider using Ollama.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

var _ embeddings.Provider = (*Provider)(nil)

// Config configures Provider.
type Config struct {
	BaseURL string
	Model   string
}

// New constructs a Provider. BaseURL defaults to http://localhost:11434,
// Model to nomic-embed-text.
func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	return &Provider{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns "ollama".
func (p *Provider) Name() string { return "ollama" }

// Dimension returns the configured model's embedding length.
func (p *Provider) Dimension() int {
	switch p.model {
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 768
	}
}

// MaxBatchSize returns a conservative cap; Ollama has no true batch
// endpoint, so EmbedBatch just loops Embed calls.
func (p *Provider) MaxBatchSize() int { return 100 }

// Embed generates an embedding for a single text via a single POST.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("ollamaembed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollamaembed: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollamaembed: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollamaembed: status %d: %s", resp.StatusCode, string(b))
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("ollamaembed: decode response: %w", err)
	}
	return out.Embedding, nil
}

// EmbedBatch loops Embed, since Ollama's /api/embeddings handles one prompt
// per call.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("ollamaembed: embed text %d: %w", i, err)
		}
		out[i] = embedding
	}
	return out, nil
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}
