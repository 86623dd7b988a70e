package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/pkg/store"
)

func testChunks() []models.Chunk {
	return []models.Chunk{
		{ID: "doc_0", Source: "doc", Index: 0, Text: "articulation", Embedding: []float32{1, 0, 0}},
		{ID: "doc_1", Source: "doc", Index: 1, Text: "fluency", Embedding: []float32{0, 1, 0}},
		{ID: "doc_2", Source: "doc", Index: 2, Text: "voice", Embedding: []float32{0.7, 0.7, 0}},
	}
}

func TestMemoryStoreQueryRanksByCosine(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Store(ctx, testChunks()))
	assert.Equal(t, 3, s.Len())

	results, err := s.Query(ctx, []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "doc_0", results[0].ID)
	assert.Equal(t, "doc_2", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.InDelta(t, 1.0, results[0].Score, 0.01)
}

func TestMemoryStoreLimitLargerThanIndex(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Store(ctx, testChunks()))

	results, err := s.Query(ctx, []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, "doc_1", results[0].ID)
}

func TestMemoryStoreEmptyAndZeroLimit(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	results, err := s.Query(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, s.Store(ctx, testChunks()))
	results, err = s.Query(ctx, []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Store(ctx, testChunks()))

	replaced := models.Chunk{ID: "doc_1", Source: "doc", Index: 1, Text: "fluency v2", Embedding: []float32{0, 0, 1}}
	require.NoError(t, s.Store(ctx, []models.Chunk{replaced}))
	assert.Equal(t, 3, s.Len())

	results, err := s.Query(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fluency v2", results[0].Text)
}

func TestMemoryStoreDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Store(ctx, testChunks()))

	err := s.Store(ctx, []models.Chunk{{ID: "x", Embedding: []float32{1, 2}}})
	assert.Error(t, err)

	err = s.Store(ctx, []models.Chunk{{ID: "y"}})
	assert.Error(t, err)

	_, err = s.Query(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)
}

func TestMemoryStoreCopiesEmbeddings(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	chunks := testChunks()
	require.NoError(t, s.Store(ctx, chunks))

	chunks[0].Embedding[0] = 0
	chunks[0].Embedding[1] = 1

	results, err := s.Query(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "doc_0", results[0].ID)
}
