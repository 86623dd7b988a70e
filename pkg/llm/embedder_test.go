package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/speechbuddy/internal/llmtest"
	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/pkg/llm"
)

func TestNewEmbedderWithConfig(t *testing.T) {
	_, err := llm.NewEmbedderWithConfig(nil, llm.EmbedderConfig{})
	assert.Error(t, err)

	emb, err := llm.NewEmbedderWithConfig(&llmtest.FakeEmbedder{}, llm.EmbedderConfig{})
	require.NoError(t, err)
	assert.NotNil(t, emb)
}

func TestEmbedChunksBatches(t *testing.T) {
	client := &llmtest.FakeEmbedder{Dim: 16}
	var progress []int
	emb, err := llm.NewEmbedderWithConfig(client, llm.EmbedderConfig{
		BatchSize: 2,
		OnBatch:   func(done, total int) { progress = append(progress, done) },
	})
	require.NoError(t, err)

	chunks := []models.Chunk{
		{Text: "This is the first chunk."},
		{Text: "And this is the second chunk."},
		{Text: "Another document's first chunk."},
		{Text: "Its second chunk."},
		{Text: "A lonely fifth chunk."},
	}

	out, err := emb.EmbedChunks(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, out, len(chunks))

	for i := range out {
		assert.Len(t, out[i].Embedding, 16)
		assert.Nil(t, chunks[i].Embedding, "input must not be modified")
	}
	assert.Equal(t, 3, client.Calls())
	assert.Equal(t, []int{2, 4, 5}, progress)
}

func TestEmbedChunksError(t *testing.T) {
	boom := errors.New("embedding service down")
	emb, err := llm.NewEmbedderWithConfig(&llmtest.FakeEmbedder{Err: boom}, llm.EmbedderConfig{})
	require.NoError(t, err)

	_, err = emb.EmbedChunks(context.Background(), []models.Chunk{{Text: "x"}})
	assert.ErrorIs(t, err, boom)

	_, err = emb.EmbedQuery(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestEmbedQuery(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(&llmtest.FakeEmbedder{Dim: 8}, llm.EmbedderConfig{})
	require.NoError(t, err)

	vec, err := emb.EmbedQuery(context.Background(), "lisp")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}
