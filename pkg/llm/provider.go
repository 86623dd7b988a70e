package llm

import (
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/speechbuddy/internal/types"
)

// ProviderConfig selects and configures the backing model service.
type ProviderConfig struct {
	Provider       string // "openai" or "ollama"
	BaseURL        string
	APIKey         string
	Model          string
	EmbeddingModel string
}

// NewModel returns the completion/chat model for the configured provider.
func NewModel(config ProviderConfig) (llms.Model, error) {
	switch config.Provider {
	case "openai", "":
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithModel(config.Model),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai model: %w", err)
		}
		return model, nil
	case "ollama":
		model, err := ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama model: %w", err)
		}
		return model, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}
}

// NewEmbeddingClient returns a client that embeds text with the configured
// embedding model.
func NewEmbeddingClient(config ProviderConfig) (types.Embedder, error) {
	switch config.Provider {
	case "openai", "":
		opts := []openai.Option{
			openai.WithToken(config.APIKey),
			openai.WithEmbeddingModel(config.EmbeddingModel),
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		emb, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai embedder: %w", err)
		}
		return emb, nil
	case "ollama":
		emb, err := ollama.New(ollama.WithModel(config.EmbeddingModel),
			ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama embedder: %w", err)
		}
		return emb, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}
}
