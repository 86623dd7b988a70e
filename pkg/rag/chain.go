package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/xhad/speechbuddy/internal/models"
	"github.com/xhad/speechbuddy/internal/types"
	"github.com/xhad/speechbuddy/pkg/llm"
)

const (
	DefaultCondenseTemplate = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question.

Chat History:
{{.chat_history}}
Follow Up Input: {{.question}}
Standalone question:`

	DefaultAnswerTemplate = `You are SpeechBuddy, a friendly assistant for speech and language therapy.
Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

{{.context}}

Chat History:
{{.chat_history}}

Question: {{.question}}
Helpful Answer:`
)

type ChainConfig struct {
	TopK             int
	MaxTokens        int
	Temperature      float64
	CondenseTemplate string
	AnswerTemplate   string
}

// Chain answers questions from the chunks in its store, conditioned on the
// conversation so far.
type Chain struct {
	config   ChainConfig
	model    llms.Model
	embedder *llm.Embedder
	store    types.VectorStore
	condense prompts.PromptTemplate
	answer   prompts.PromptTemplate
}

// Result is an answer together with what it was built from.
type Result struct {
	Question string
	Answer   string
	Sources  []models.ScoredChunk
}

func NewChain(model llms.Model, embedder *llm.Embedder, store types.VectorStore, config ChainConfig) (*Chain, error) {
	if model == nil || embedder == nil || store == nil {
		return nil, errors.New("chain requires a model, an embedder and a store")
	}
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if config.CondenseTemplate == "" {
		config.CondenseTemplate = DefaultCondenseTemplate
	}
	if config.AnswerTemplate == "" {
		config.AnswerTemplate = DefaultAnswerTemplate
	}

	return &Chain{
		config:   config,
		model:    model,
		embedder: embedder,
		store:    store,
		condense: prompts.NewPromptTemplate(config.CondenseTemplate, []string{"chat_history", "question"}),
		answer:   prompts.NewPromptTemplate(config.AnswerTemplate, []string{"context", "chat_history", "question"}),
	}, nil
}

// Answer satisfies types.Answerer.
func (c *Chain) Answer(ctx context.Context, query string, history []models.Turn) (string, error) {
	res, err := c.Ask(ctx, query, history)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// Ask runs one turn: condense the query against history when there is any,
// retrieve the top chunks for it and answer from them.
func (c *Chain) Ask(ctx context.Context, query string, history []models.Turn) (Result, error) {
	transcript := formatHistory(history)

	question := query
	if len(history) > 0 {
		prompt, err := c.condense.Format(map[string]any{
			"chat_history": transcript,
			"question":     query,
		})
		if err != nil {
			return Result{}, fmt.Errorf("render condense prompt: %w", err)
		}
		question, err = llm.Complete(ctx, c.model, prompt, c.callOptions()...)
		if err != nil {
			return Result{}, fmt.Errorf("condense question: %w", err)
		}
	}

	vec, err := c.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return Result{}, err
	}
	sources, err := c.store.Query(ctx, vec, c.config.TopK)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve chunks: %w", err)
	}

	texts := make([]string, 0, len(sources))
	for _, s := range sources {
		texts = append(texts, s.Text)
	}
	prompt, err := c.answer.Format(map[string]any{
		"context":      strings.Join(texts, "\n\n"),
		"chat_history": transcript,
		"question":     question,
	})
	if err != nil {
		return Result{}, fmt.Errorf("render answer prompt: %w", err)
	}

	answer, err := llm.Complete(ctx, c.model, prompt, c.callOptions()...)
	if err != nil {
		return Result{}, fmt.Errorf("answer question: %w", err)
	}

	return Result{Question: question, Answer: answer, Sources: sources}, nil
}

func (c *Chain) callOptions() []llms.CallOption {
	var opts []llms.CallOption
	if c.config.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.config.MaxTokens))
	}
	if c.config.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(c.config.Temperature))
	}
	return opts
}

func formatHistory(history []models.Turn) string {
	var b strings.Builder
	for _, t := range history {
		switch t.Role {
		case models.RoleUser:
			b.WriteString("Human: ")
		case models.RoleAssistant:
			b.WriteString("AI: ")
		default:
			b.WriteString("System: ")
		}
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
