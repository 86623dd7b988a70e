package processor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/xhad/speechbuddy/internal/models"
)

type ProcessorConfig struct {
	ChunkSize      int // in runes
	ChunkOverlap   int // in runes
	MinChunkLength int // chunks shorter than this (after trimming) are dropped
}

type Processor struct {
	config ProcessorConfig
}

// Span is a piece of text and its byte offset in the source.
type Span struct {
	Text   string
	Offset int
}

func NewWithConfig(config ProcessorConfig) (Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = 200
		}
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 1
	}
	if config.ChunkSize < 1 {
		return Processor{}, fmt.Errorf("chunk size must be positive")
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return Processor{}, fmt.Errorf("chunk overlap must be non-negative and less than chunk size")
	}

	return Processor{
		config: config,
	}, nil
}

func (p *Processor) Process(docs []models.Document) ([]models.ProcessedDocument, error) {
	var processed []models.ProcessedDocument

	for _, doc := range docs {
		source := doc.URL
		if source == "" {
			source = doc.ID
		}
		prefix := doc.ID
		if prefix == "" {
			prefix = source
		}

		spans := p.Split(doc.Content)
		chunks := make([]models.Chunk, 0, len(spans))
		for i, span := range spans {
			chunks = append(chunks, models.Chunk{
				ID:     fmt.Sprintf("%s_%d", prefix, i),
				Source: source,
				Index:  i,
				Offset: span.Offset,
				Text:   span.Text,
			})
		}

		processed = append(processed, models.ProcessedDocument{
			Document: doc,
			Chunks:   chunks,
		})
	}

	return processed, nil
}

// Split cuts text into windows of at most ChunkSize runes. Consecutive windows
// share ChunkOverlap runes. A window that would end mid-word is shortened to
// the last whitespace in its second half, if there is one.
func (p *Processor) Split(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	// byteAt[i] is the byte offset of runes[i]; byteAt[n] == len(text)
	byteAt := make([]int, n+1)
	for i, r := range runes {
		byteAt[i+1] = byteAt[i] + len(string(r))
	}

	var spans []Span
	start := 0
	for {
		end := start + p.config.ChunkSize
		if end >= n {
			end = n
		} else {
			for j := end; j > start+p.config.ChunkSize/2; j-- {
				if unicode.IsSpace(runes[j-1]) {
					end = j
					break
				}
			}
		}

		raw := text[byteAt[start]:byteAt[end]]
		lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
		trimmed := strings.TrimSpace(raw)
		if len([]rune(trimmed)) >= p.config.MinChunkLength {
			spans = append(spans, Span{Text: trimmed, Offset: byteAt[start] + lead})
		}

		if end == n {
			break
		}
		next := end - p.config.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return spans
}
