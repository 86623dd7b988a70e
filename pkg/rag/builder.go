package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/internal/types"
	"github.com/xhad/speechbuddy/pkg/llm"
	"github.com/xhad/speechbuddy/pkg/processor"
	"github.com/xhad/speechbuddy/pkg/store"
	"go.uber.org/zap"
)

// Pipeline stages reported to OnProgress.
const (
	StageLoad  = "load"
	StageSplit = "split"
	StageEmbed = "embed"
	StageIndex = "index"
)

type BuilderConfig struct {
	Source    string
	Loader    types.Loader
	Processor processor.ProcessorConfig
	Chain     ChainConfig
	// NewStore returns the index a build writes into. Defaults to a fresh
	// in-memory store per build.
	NewStore   func(ctx context.Context) (types.VectorStore, error)
	OnProgress func(stage string, done, total int)
	Logger     *zap.Logger
}

// Builder runs load, split, embed and index, then wraps the index in a Chain.
type Builder struct {
	config    BuilderConfig
	model     llms.Model
	embedder  *llm.Embedder
	processor processor.Processor
	log       *zap.Logger
}

func NewBuilder(model llms.Model, embedder *llm.Embedder, config BuilderConfig) (*Builder, error) {
	if model == nil || embedder == nil {
		return nil, errors.New("builder requires a model and an embedder")
	}
	if config.Source == "" {
		return nil, errors.New("builder requires a document source")
	}
	if config.Loader == nil {
		config.Loader = &SourceLoader{}
	}
	if config.NewStore == nil {
		config.NewStore = func(context.Context) (types.VectorStore, error) {
			return store.NewMemoryStore(), nil
		}
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	p, err := processor.NewWithConfig(config.Processor)
	if err != nil {
		return nil, fmt.Errorf("invalid processor config: %w", err)
	}

	return &Builder{
		config:    config,
		model:     model,
		embedder:  embedder,
		processor: p,
		log:       config.Logger,
	}, nil
}

func (b *Builder) Build(ctx context.Context) (*Chain, error) {
	start := time.Now()

	docs, err := b.config.Loader.Load(ctx, b.config.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", b.config.Source, err)
	}
	b.progress(StageLoad, len(docs), len(docs))

	processed, err := b.processor.Process(docs)
	if err != nil {
		return nil, fmt.Errorf("failed to split documents: %w", err)
	}
	var chunks []models.Chunk
	for _, pd := range processed {
		chunks = append(chunks, pd.Chunks...)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%s: %w", b.config.Source, ErrEmptyDocument)
	}
	b.progress(StageSplit, len(chunks), len(chunks))

	embedded, err := b.embedChunks(ctx, chunks)
	if err != nil {
		return nil, err
	}

	idx, err := b.config.NewStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}
	if err := idx.Store(ctx, embedded); err != nil {
		return nil, fmt.Errorf("failed to index chunks: %w", err)
	}
	b.progress(StageIndex, len(embedded), len(embedded))

	b.log.Info("retrieval pipeline built",
		zap.String("source", b.config.Source),
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(embedded)),
		zap.Duration("took", time.Since(start)),
	)

	return NewChain(b.model, b.embedder, idx, b.config.Chain)
}

func (b *Builder) embedChunks(ctx context.Context, chunks []models.Chunk) ([]models.Chunk, error) {
	e := b.embedder
	if b.config.OnProgress != nil {
		e = e.WithProgress(func(done, total int) {
			b.progress(StageEmbed, done, total)
		})
	}
	return e.EmbedChunks(ctx, chunks)
}

func (b *Builder) progress(stage string, done, total int) {
	if b.config.OnProgress != nil {
		b.config.OnProgress(stage, done, total)
	}
}
