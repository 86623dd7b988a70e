// Package llmtest provides in-process stand-ins for model services.
package llmtest

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// FakeModel implements llms.Model. Respond decides the reply for a prompt;
// when nil the model echoes the prompt back.
type FakeModel struct {
	Respond func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
	options []llms.CallOptions
}

func (m *FakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	var parts []string
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				parts = append(parts, text.Text)
			}
		}
	}
	prompt := strings.Join(parts, "\n")

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.options = append(m.options, opts)
	m.mu.Unlock()

	reply := prompt
	if m.Respond != nil {
		var err error
		reply, err = m.Respond(prompt)
		if err != nil {
			return nil, err
		}
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply}},
	}, nil
}

func (m *FakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// Prompts returns every prompt seen so far.
func (m *FakeModel) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastOptions returns the call options of the most recent call.
func (m *FakeModel) LastOptions() llms.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.options) == 0 {
		return llms.CallOptions{}
	}
	return m.options[len(m.options)-1]
}

// FakeEmbedder hashes lowercase words into a fixed number of buckets, so texts
// sharing words end up close under cosine similarity.
type FakeEmbedder struct {
	Dim int
	Err error

	mu    sync.Mutex
	calls int
}

func (e *FakeEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.Err != nil {
		return nil, e.Err
	}
	dim := e.Dim
	if dim <= 0 {
		dim = 64
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, dim)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,!?;:\"'()")
			if word == "" {
				continue
			}
			h := fnv.New32a()
			h.Write([]byte(word))
			vec[h.Sum32()%uint32(dim)]++
		}
		out[i] = vec
	}
	return out, nil
}

// Calls reports how many CreateEmbedding calls were made.
func (e *FakeEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
