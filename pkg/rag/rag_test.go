package rag_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/speechbuddy/internal/llmtest"
	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/pkg/llm"
	"github.com/xhad/speechbuddy/pkg/processor"
	"github.com/xhad/speechbuddy/pkg/rag"
)

const guide = `Articulation therapy helps children produce speech sounds correctly.

Stuttering therapy builds fluency through slow, easy speech and breathing.

Voice therapy works on pitch, loudness and resonance of the voice.`

func writeGuide(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guide.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type countingLoader struct {
	inner rag.SourceLoader
	loads int32
}

func (l *countingLoader) Load(ctx context.Context, source string) ([]models.Document, error) {
	atomic.AddInt32(&l.loads, 1)
	return l.inner.Load(ctx, source)
}

type staticLoader []models.Document

func (l staticLoader) Load(context.Context, string) ([]models.Document, error) {
	return l, nil
}

func newBuilder(t *testing.T, model *llmtest.FakeModel, config rag.BuilderConfig) *rag.Builder {
	t.Helper()
	emb, err := llm.NewEmbedderWithConfig(&llmtest.FakeEmbedder{}, llm.EmbedderConfig{BatchSize: 2})
	require.NoError(t, err)
	if config.Processor.ChunkSize == 0 {
		config.Processor = processor.ProcessorConfig{ChunkSize: 80, ChunkOverlap: 10}
	}
	b, err := rag.NewBuilder(model, emb, config)
	require.NoError(t, err)
	return b
}

func TestSourceLoaderFile(t *testing.T) {
	path := writeGuide(t, guide)

	docs, err := (&rag.SourceLoader{}).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "guide", docs[0].ID)
	assert.Equal(t, path, docs[0].URL)
	assert.Contains(t, docs[0].Content, "Stuttering therapy")
}

func TestSourceLoaderErrors(t *testing.T) {
	ctx := context.Background()
	l := &rag.SourceLoader{}

	_, err := l.Load(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)

	_, err = l.Load(ctx, writeGuide(t, "  \n\n "))
	assert.ErrorIs(t, err, rag.ErrEmptyDocument)

	_, err = l.Load(ctx, "https://example.com/guide")
	assert.Error(t, err)
}

func TestSourceLoaderURL(t *testing.T) {
	web := staticLoader{{ID: "web", URL: "https://example.com/guide", Content: guide}}
	l := &rag.SourceLoader{Web: web}

	docs, err := l.Load(context.Background(), "https://example.com/guide")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "web", docs[0].ID)
}

func TestBuildReportsStages(t *testing.T) {
	var stages []string
	b := newBuilder(t, &llmtest.FakeModel{}, rag.BuilderConfig{
		Source: writeGuide(t, guide),
		OnProgress: func(stage string, done, total int) {
			if len(stages) == 0 || stages[len(stages)-1] != stage {
				stages = append(stages, stage)
			}
			assert.LessOrEqual(t, done, total)
		},
	})

	chain, err := b.Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, chain)
	assert.Equal(t, []string{rag.StageLoad, rag.StageSplit, rag.StageEmbed, rag.StageIndex}, stages)
}

func TestBuildEmptyDocument(t *testing.T) {
	b := newBuilder(t, &llmtest.FakeModel{}, rag.BuilderConfig{
		Source: "inline",
		Loader: staticLoader{{ID: "blank", Content: " \n\t "}},
	})

	_, err := b.Build(context.Background())
	assert.ErrorIs(t, err, rag.ErrEmptyDocument)
}

func TestAnswerWithoutHistory(t *testing.T) {
	model := &llmtest.FakeModel{Respond: func(prompt string) (string, error) {
		return "  Slow, easy speech helps.  ", nil
	}}
	b := newBuilder(t, model, rag.BuilderConfig{
		Source: writeGuide(t, guide),
		Chain:  rag.ChainConfig{TopK: 1, MaxTokens: 200},
	})
	chain, err := b.Build(context.Background())
	require.NoError(t, err)

	res, err := chain.Ask(context.Background(), "stuttering fluency", nil)
	require.NoError(t, err)

	assert.Equal(t, "Slow, easy speech helps.", res.Answer)
	assert.Equal(t, "stuttering fluency", res.Question)
	require.Len(t, res.Sources, 1)
	assert.Contains(t, res.Sources[0].Text, "Stuttering")

	prompts := model.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Stuttering therapy builds fluency")
	assert.Contains(t, prompts[0], "Question: stuttering fluency")
	assert.Equal(t, 200, model.LastOptions().MaxTokens)
}

func TestAnswerCondensesWithHistory(t *testing.T) {
	model := &llmtest.FakeModel{Respond: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Standalone question:") {
			return "What does voice therapy work on?", nil
		}
		return "Pitch and loudness.", nil
	}}
	b := newBuilder(t, model, rag.BuilderConfig{Source: writeGuide(t, guide)})
	chain, err := b.Build(context.Background())
	require.NoError(t, err)

	history := []models.Turn{
		models.NewTurn(models.RoleUser, "tell me about voice therapy"),
		models.NewTurn(models.RoleAssistant, "It is one kind of therapy."),
	}
	answer, err := chain.Answer(context.Background(), "what does it work on?", history)
	require.NoError(t, err)
	assert.Equal(t, "Pitch and loudness.", answer)

	prompts := model.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "Human: tell me about voice therapy")
	assert.Contains(t, prompts[0], "AI: It is one kind of therapy.")
	assert.Contains(t, prompts[0], "Follow Up Input: what does it work on?")
	assert.Contains(t, prompts[1], "Question: What does voice therapy work on?")
	assert.Contains(t, prompts[1], "Voice therapy works on pitch")
}

func TestAnswerPropagatesModelError(t *testing.T) {
	boom := errors.New("rate limited")
	model := &llmtest.FakeModel{Respond: func(string) (string, error) { return "", boom }}
	b := newBuilder(t, model, rag.BuilderConfig{Source: writeGuide(t, guide)})
	chain, err := b.Build(context.Background())
	require.NoError(t, err)

	_, err = chain.Answer(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, boom)
}

func TestCachedBuildsOnceUntilExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	loader := &countingLoader{}
	b := newBuilder(t, &llmtest.FakeModel{}, rag.BuilderConfig{
		Source: writeGuide(t, guide),
		Loader: loader,
	})

	cached, err := rag.NewCached(b, time.Hour, func() time.Time { return now })
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := cached.Answer(ctx, "articulation", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&loader.loads))

	now = now.Add(2 * time.Hour)
	_, err = cached.Answer(ctx, "articulation", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loader.loads))

	cached.Invalidate()
	_, err = cached.Chain(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&loader.loads))
}

func TestNewBuilderValidation(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(&llmtest.FakeEmbedder{}, llm.EmbedderConfig{})
	require.NoError(t, err)

	_, err = rag.NewBuilder(nil, emb, rag.BuilderConfig{Source: "x"})
	assert.Error(t, err)
	_, err = rag.NewBuilder(&llmtest.FakeModel{}, emb, rag.BuilderConfig{})
	assert.Error(t, err)
	_, err = rag.NewBuilder(&llmtest.FakeModel{}, emb, rag.BuilderConfig{
		Source:    "x",
		Processor: processor.ProcessorConfig{ChunkSize: 10, ChunkOverlap: 20},
	})
	assert.Error(t, err)
}
