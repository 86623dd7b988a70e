package types

import (
	"context"

	"github.com/xhad/speechbuddy/internal/models"
)

// Core interfaces

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, transcript string) (string, error)
}

// Answerer answers a user query grounded in whatever it was built from.
type Answerer interface {
	Answer(ctx context.Context, query string, history []models.Turn) (string, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStore interface {
	Store(ctx context.Context, chunks []models.Chunk) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.ScoredChunk, error)
	Close()
}

type Loader interface {
	Load(ctx context.Context, source string) ([]models.Document, error)
}

type Processor interface {
	Process(docs []models.Document) ([]models.ProcessedDocument, error)
}
