package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/speechbuddy/pkg/llm"
)

func TestNewModel(t *testing.T) {
	tests := []struct {
		name    string
		config  llm.ProviderConfig
		wantErr bool
	}{
		{
			name:   "openai",
			config: llm.ProviderConfig{Provider: "openai", APIKey: "sk-test", Model: "gpt-4o-mini"},
		},
		{
			name:   "ollama",
			config: llm.ProviderConfig{Provider: "ollama", BaseURL: "http://localhost:11434", Model: "mistral"},
		},
		{
			name:    "unknown",
			config:  llm.ProviderConfig{Provider: "bard"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := llm.NewModel(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, model)

			emb, err := llm.NewEmbeddingClient(tt.config)
			require.NoError(t, err)
			assert.NotNil(t, emb)
		})
	}
}
