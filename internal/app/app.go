// Package app wires configuration into the components shared by the
// commands under cmd/.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/speechbuddy/internal/types"
	"github.com/xhad/speechbuddy/pkg/config"
	"github.com/xhad/speechbuddy/pkg/llm"
	"github.com/xhad/speechbuddy/pkg/logging"
	"github.com/xhad/speechbuddy/pkg/processor"
	"github.com/xhad/speechbuddy/pkg/rag"
	"github.com/xhad/speechbuddy/pkg/scraper"
	"github.com/xhad/speechbuddy/pkg/store"
	"go.uber.org/zap"
)

// Load reads .env, the config file and the environment, validates the
// result and builds the logger it asks for.
func Load(configPath string) (*config.Config, *zap.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, nil, err
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// Validate joins every validation problem into one error.
func Validate(cfg *config.Config) error {
	problems := cfg.Validate()
	if len(problems) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(problems))
	for _, p := range problems {
		msgs = append(msgs, p.Error())
	}
	return errors.New("invalid configuration: " + strings.Join(msgs, "; "))
}

func providerConfig(cfg *config.Config) llm.ProviderConfig {
	return llm.ProviderConfig{
		Provider:       cfg.LLM.Provider,
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
	}
}

func NewModel(cfg *config.Config) (llms.Model, error) {
	return llm.NewModel(providerConfig(cfg))
}

// NewGenerator builds the relay's response generator.
func NewGenerator(cfg *config.Config) (*llm.Generator, error) {
	model, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewGenerator(model, llm.GeneratorConfig{
		MaxTokens:   cfg.Relay.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
}

// Pipeline is a configured retrieval pipeline and whatever it holds open.
type Pipeline struct {
	Builder *rag.Builder
	closers []func()
}

func (p *Pipeline) Close() {
	for _, c := range p.closers {
		c()
	}
}

// NewPipeline builds the document pipeline. The index lives in memory
// unless a database URL is configured, in which case chunks go to pgvector.
func NewPipeline(ctx context.Context, cfg *config.Config, log *zap.Logger, onProgress func(stage string, done, total int)) (*Pipeline, error) {
	model, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewEmbeddingClient(providerConfig(cfg))
	if err != nil {
		return nil, err
	}
	return NewPipelineWith(ctx, cfg, log, model, client, onProgress)
}

// NewPipelineWith is NewPipeline with the completion model and embedding
// client supplied by the caller.
func NewPipelineWith(ctx context.Context, cfg *config.Config, log *zap.Logger, model llms.Model, client types.Embedder, onProgress func(stage string, done, total int)) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}
	embedder, err := llm.NewEmbedderWithConfig(client, llm.EmbedderConfig{BatchSize: cfg.Document.BatchSize})
	if err != nil {
		return nil, err
	}

	web, err := scraper.NewWithConfig(scraper.ScraperConfig{
		MaxDepth:          cfg.Scraper.MaxDepth,
		RateLimit:         cfg.Scraper.RateLimit,
		IgnorePatterns:    cfg.Scraper.IgnorePatterns,
		AllowedExtensions: cfg.Scraper.AllowedExtensions,
		Logger:            log.Named("scraper"),
		OnProgress: func(url string) {
			log.Debug("fetching page", zap.String("url", url))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scraper: %w", err)
	}

	p := &Pipeline{}
	var newStore func(context.Context) (types.VectorStore, error)
	if cfg.Database.URL != "" {
		vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: cfg.Database.URL,
			TableName:  cfg.Database.TableName,
			VectorDim:  cfg.Database.VectorDim,
			BatchSize:  cfg.Database.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		p.closers = append(p.closers, vs.Close)
		newStore = func(ctx context.Context) (types.VectorStore, error) {
			// every build re-indexes the document from scratch
			if err := vs.Truncate(ctx); err != nil {
				return nil, err
			}
			return vs, nil
		}
		log.Info("using pgvector index", zap.String("table", cfg.Database.TableName))
	}

	p.Builder, err = rag.NewBuilder(model, embedder, rag.BuilderConfig{
		Source: cfg.Document.Path,
		Loader: &rag.SourceLoader{Web: web},
		Processor: processor.ProcessorConfig{
			ChunkSize:    cfg.Document.ChunkSize,
			ChunkOverlap: cfg.Document.ChunkOverlap,
		},
		Chain: rag.ChainConfig{
			TopK:        cfg.Document.TopK,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		},
		NewStore:   newStore,
		OnProgress: onProgress,
		Logger:     log.Named("rag"),
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}
