package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type LLMConfig struct {
	Provider       string  `yaml:"provider"`
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	Model          string  `yaml:"model"`
	EmbeddingModel string  `yaml:"embedding_model"`
	MaxTokens      int     `yaml:"max_tokens"`
	Temperature    float64 `yaml:"temperature"`
}

type RelayConfig struct {
	Addr      string `yaml:"addr"`
	MaxTokens int    `yaml:"max_tokens"`
}

type DashboardConfig struct {
	Addr       string        `yaml:"addr"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type DocumentConfig struct {
	Path         string        `yaml:"path"`
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	TopK         int           `yaml:"top_k"`
	BatchSize    int           `yaml:"batch_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	MemoryWindow int           `yaml:"memory_window"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
	VectorDim int    `yaml:"vector_dim"`
	BatchSize int    `yaml:"batch_size"`
}

type ScraperConfig struct {
	MaxDepth          int      `yaml:"max_depth"`
	RateLimit         float64  `yaml:"rate_limit"`
	IgnorePatterns    []string `yaml:"ignore_patterns"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Relay     RelayConfig     `yaml:"relay"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Document  DocumentConfig  `yaml:"document"`
	Database  DatabaseConfig  `yaml:"database"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Log       LogConfig       `yaml:"log"`
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none are
// given) into the process environment. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("error loading %s: %w", p, err)
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/speechbuddy/config.yaml"),
			"/etc/speechbuddy/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = ProviderOpenAI
	}
	switch config.LLM.Provider {
	case ProviderOllama:
		if config.LLM.Model == "" {
			config.LLM.Model = "mistral"
		}
		if config.LLM.EmbeddingModel == "" {
			config.LLM.EmbeddingModel = "nomic-embed-text:latest"
		}
		if config.LLM.BaseURL == "" {
			config.LLM.BaseURL = "http://localhost:11434"
		}
	default:
		if config.LLM.Model == "" {
			config.LLM.Model = "gpt-4o-mini"
		}
		if config.LLM.EmbeddingModel == "" {
			config.LLM.EmbeddingModel = "text-embedding-3-small"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 1000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.7
	}

	if config.Relay.Addr == "" {
		config.Relay.Addr = ":5000"
	}
	if config.Relay.MaxTokens == 0 {
		config.Relay.MaxTokens = 150
	}

	if config.Dashboard.Addr == "" {
		config.Dashboard.Addr = ":8501"
	}
	if config.Dashboard.SessionTTL == 0 {
		config.Dashboard.SessionTTL = 24 * time.Hour
	}

	if config.Document.Path == "" {
		config.Document.Path = "data/speech_therapy.txt"
	}
	// an explicit chunk_size keeps an unset overlap at zero
	if config.Document.ChunkSize == 0 {
		config.Document.ChunkSize = 1000
		if config.Document.ChunkOverlap == 0 {
			config.Document.ChunkOverlap = 200
		}
	}
	if config.Document.TopK == 0 {
		config.Document.TopK = 4
	}
	if config.Document.BatchSize == 0 {
		config.Document.BatchSize = 32
	}
	if config.Document.CacheTTL == 0 {
		config.Document.CacheTTL = time.Hour
	}
	if config.Document.MemoryWindow == 0 {
		config.Document.MemoryWindow = 10
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "speech_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && config.LLM.Provider == ProviderOllama {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if doc := os.Getenv("SPEECHBUDDY_DOCUMENT"); doc != "" {
		config.Document.Path = doc
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
