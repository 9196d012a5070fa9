// Package embeddings defines the embedding-provider contract episodic
// memory embeds content and queries through.
package embeddings

import "context"

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call where
	// the underlying API supports it.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the provider's identifier.
	Name() string

	// Dimension returns the embedding vector length for the configured model.
	Dimension() int

	// MaxBatchSize returns the maximum number of texts EmbedBatch accepts
	// in one call.
	MaxBatchSize() int
}
