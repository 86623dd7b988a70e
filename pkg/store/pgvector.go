package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/speechbuddy/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

// VectorStore keeps chunks in a Postgres table with a pgvector column and
// ranks them by cosine distance.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "speech_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 1536
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			chunk_index INTEGER,
			byte_offset INTEGER,
			content TEXT,
			embedding vector(%d)
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING hnsw (embedding vector_cosine_ops)`,
		vs.config.TableName, vs.config.TableName)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Store upserts chunks, BatchSize rows per round trip, in one transaction.
func (vs *VectorStore) Store(ctx context.Context, chunks []models.Chunk) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, chunk_index, byte_offset, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			byte_offset = EXCLUDED.byte_offset,
			embedding = EXCLUDED.embedding`,
		vs.config.TableName)

	for start := 0; start < len(chunks); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(chunks))

		batch := &pgx.Batch{}
		for _, c := range chunks[start:end] {
			if len(c.Embedding) != vs.config.VectorDim {
				return fmt.Errorf("chunk %s has dimension %d, table expects %d", c.ID, len(c.Embedding), vs.config.VectorDim)
			}
			batch.Queue(stmt,
				c.ID,
				c.Source,
				c.Index,
				c.Offset,
				sanitizeUTF8(c.Text),
				pgvector.NewVector(c.Embedding),
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (vs *VectorStore) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, source, chunk_index, byte_offset, content, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		err := rows.Scan(
			&sc.ID,
			&sc.Source,
			&sc.Index,
			&sc.Offset,
			&sc.Text,
			&sc.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, sc)
	}

	return results, rows.Err()
}

// Truncate drops every stored chunk.
func (vs *VectorStore) Truncate(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", vs.config.TableName))
	if err != nil {
		return fmt.Errorf("failed to truncate %s: %w", vs.config.TableName, err)
	}
	return nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// sanitizeUTF8 drops invalid bytes, which Postgres rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			if _, size := utf8.DecodeRuneInString(s[i:]); size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}
