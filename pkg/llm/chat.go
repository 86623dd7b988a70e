package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
)

// DefaultTemplate is the instruction the relay wraps every transcript in.
const DefaultTemplate = "Act as a speech therapist and respond to this: {{.transcript}}"

// ErrNoChoices is returned when the model answers with an empty choice list.
var ErrNoChoices = errors.New("no completion choices returned")

// GeneratorConfig represents the configuration for a response generator.
type GeneratorConfig struct {
	Template    string
	MaxTokens   int
	Temperature float64
}

// Generator turns a transcript into a therapist-style reply.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
	prompt prompts.PromptTemplate
}

// NewGenerator creates a Generator backed by the given model.
func NewGenerator(model llms.Model, config GeneratorConfig) (*Generator, error) {
	if model == nil {
		return nil, errors.New("generator requires a model")
	}
	if config.Template == "" {
		config.Template = DefaultTemplate
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 150
	}

	return &Generator{
		config: config,
		llm:    model,
		prompt: prompts.NewPromptTemplate(config.Template, []string{"transcript"}),
	}, nil
}

// Prompt renders the instruction for a transcript.
func (g *Generator) Prompt(transcript string) (string, error) {
	return g.prompt.Format(map[string]any{"transcript": transcript})
}

// Generate sends the rendered prompt to the model and returns the trimmed
// text of the first choice. Errors from the model are returned as-is, wrapped.
func (g *Generator) Generate(ctx context.Context, transcript string) (string, error) {
	prompt, err := g.Prompt(transcript)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}

	opts := []llms.CallOption{llms.WithMaxTokens(g.config.MaxTokens)}
	if g.config.Temperature > 0 {
		opts = append(opts, llms.WithTemperature(g.config.Temperature))
	}
	return Complete(ctx, g.llm, prompt, opts...)
}

// Complete sends a single human prompt and returns the trimmed first choice.
func Complete(ctx context.Context, model llms.Model, prompt string, opts ...llms.CallOption) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("completion error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", ErrNoChoices
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
