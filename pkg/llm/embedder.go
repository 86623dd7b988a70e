package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/internal/types"
)

// EmbedderConfig represents the configuration for an embedder.
type EmbedderConfig struct {
	BatchSize int
	// OnBatch is called after every embedded batch with the running total.
	OnBatch func(done, total int)
}

// Embedder batches embedding requests against an embedding client.
type Embedder struct {
	config EmbedderConfig
	client types.Embedder
}

func NewEmbedderWithConfig(client types.Embedder, config EmbedderConfig) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("embedder requires a client")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}

	return &Embedder{
		config: config,
		client: client,
	}, nil
}

func (e *Embedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return e.client.CreateEmbedding(ctx, texts)
}

// EmbedChunks fills the Embedding field of every chunk, in batches.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []models.Chunk) ([]models.Chunk, error) {
	out := make([]models.Chunk, len(chunks))
	copy(out, chunks)

	for start := 0; start < len(out); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(out) {
			end = len(out)
		}

		texts := make([]string, 0, end-start)
		for _, c := range out[start:end] {
			texts = append(texts, c.Text)
		}

		vectors, err := e.client.CreateEmbedding(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(vectors), len(texts))
		}

		for i, v := range vectors {
			out[start+i].Embedding = v
		}

		if e.config.OnBatch != nil {
			e.config.OnBatch(end, len(out))
		}
	}

	return out, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := e.client.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to create query embedding: %w", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("no query embedding returned")
	}
	return vectors[0], nil
}

// WithProgress returns a copy of e that reports each batch to fn.
func (e *Embedder) WithProgress(fn func(done, total int)) *Embedder {
	config := e.config
	config.OnBatch = fn
	return &Embedder{config: config, client: e.client}
}
