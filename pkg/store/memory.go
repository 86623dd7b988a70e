package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xhad/speechbuddy/internal/models"
)

// MemoryStore is an in-process vector index. Query does a full cosine scan,
// which is fine for a single reference document.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []models.Chunk
	byID   map[string]int
	dim    int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Store adds chunks to the index. A chunk whose ID is already present
// replaces the stored one.
func (m *MemoryStore) Store(ctx context.Context, chunks []models.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		if m.dim == 0 {
			m.dim = len(c.Embedding)
		} else if len(c.Embedding) != m.dim {
			return fmt.Errorf("chunk %s has dimension %d, index has %d", c.ID, len(c.Embedding), m.dim)
		}

		c.Embedding = append([]float32(nil), c.Embedding...)
		if i, ok := m.byID[c.ID]; ok {
			m.chunks[i] = c
			continue
		}
		m.byID[c.ID] = len(m.chunks)
		m.chunks = append(m.chunks, c)
	}
	return nil
}

// Query returns the limit chunks most similar to vec, best first. Ties keep
// insertion order.
func (m *MemoryStore) Query(ctx context.Context, vec []float32, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.chunks) == 0 {
		return nil, nil
	}
	if len(vec) != m.dim {
		return nil, fmt.Errorf("query has dimension %d, index has %d", len(vec), m.dim)
	}

	scored := make([]models.ScoredChunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		scored = append(scored, models.ScoredChunk{Chunk: c, Score: cosine(vec, c.Embedding)})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks)
}

func (m *MemoryStore) Close() {}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
