package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.api_key",
				Message: "OPENAI_API_KEY is required for the openai provider",
			})
		}
	case ProviderOllama:
		if c.LLM.BaseURL == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "Ollama base URL is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown provider %q", c.LLM.Provider),
		})
	}

	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid base URL",
			})
		}
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Relay.MaxTokens < 1 || c.Relay.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "relay.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	// Validate Document config
	if strings.TrimSpace(c.Document.Path) == "" {
		errors = append(errors, ValidationError{
			Field:   "document.path",
			Message: "document path is required",
		})
	}

	if c.Document.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "document.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Document.ChunkOverlap < 0 || c.Document.ChunkOverlap >= c.Document.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "document.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	if c.Document.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "document.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Document.CacheTTL <= 0 {
		errors = append(errors, ValidationError{
			Field:   "document.cache_ttl",
			Message: "cache_ttl must be positive",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if u, err := url.Parse(c.Database.URL); err != nil || u.Scheme == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}

		if c.Database.VectorDim < 1 {
			errors = append(errors, ValidationError{
				Field:   "database.vector_dim",
				Message: "vector_dim must be positive",
			})
		}
	}

	// Validate Scraper config
	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	for _, ext := range c.Scraper.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") && ext != "" && ext != "/" {
			errors = append(errors, ValidationError{
				Field:   "scraper.allowed_extensions",
				Message: fmt.Sprintf("invalid extension format: %s", ext),
			})
		}
	}

	return errors
}
