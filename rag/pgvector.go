package rag

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
)

// PgVectorStore keeps chunks in Postgres with the pgvector extension.
type PgVectorStore struct {
	pool     *pgxpool.Pool
	dim      int
	embedder Embedder
}

func NewPgVectorStore(ctx context.Context, dbURL string, dim int, emb Embedder) (*PgVectorStore, error) {
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL is required for the pgvector store")
	}
	if dim <= 0 {
		return nil, errors.Errorf("invalid embedding dimension %d", dim)
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	s := &PgVectorStore{pool: pool, dim: dim, embedder: emb}
	if err := s.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureTable(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return errors.Wrap(err, "failed to create vector extension")
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS legal_chunks (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			text TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, s.dim)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return errors.Wrap(err, "failed to create legal_chunks table")
	}
	if _, err := s.pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS legal_chunks_embedding_idx
		ON legal_chunks USING hnsw (embedding vector_cosine_ops);
	`); err != nil {
		return errors.Wrap(err, "failed to create vector index")
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, errors.Errorf("expected %d embeddings, got %d", len(chunks), len(vectors))
	}

	batch := &pgx.Batch{}
	for i, c := range chunks {
		batch.Queue(`
			INSERT INTO legal_chunks (id, source, text, embedding)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id)
			DO UPDATE SET
				source = EXCLUDED.source,
				text = EXCLUDED.text,
				embedding = EXCLUDED.embedding
		`, c.ID, c.Source, c.Text, pgvector.NewVector(vectors[i]))
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range chunks {
		if _, err := br.Exec(); err != nil {
			return i, errors.Wrapf(err, "upsert chunk %s", chunks[i].ID)
		}
	}
	return len(chunks), nil
}

func (s *PgVectorStore) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	qv, err := embedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, source, text, 1 - (embedding <=> $1) AS similarity
		FROM legal_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(qv), k)
	if err != nil {
		return nil, errors.Wrap(err, "search legal_chunks")
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Source, &h.Text, &h.Score); err != nil {
			return nil, errors.Wrap(err, "scan hit")
		}
		hits = append(hits, h)
	}
	return hits, errors.Wrap(rows.Err(), "iterate hits")
}

func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}
