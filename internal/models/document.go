package models

// Document is a loaded source text, either a local file or a scraped page.
type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

// Chunk is a span of a document's content. Offset is the byte offset of Text
// inside the source content.
type Chunk struct {
	ID        string
	Source    string
	Index     int
	Offset    int
	Text      string
	Embedding []float32
}

// ScoredChunk is a chunk returned from a similarity search.
type ScoredChunk struct {
	Chunk
	Score float64
}

type ProcessedDocument struct {
	Document
	Chunks []Chunk
}
