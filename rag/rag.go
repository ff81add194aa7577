// Package rag keeps the legal knowledge base in a vector store and retrieves
// the passages most relevant to a conversation.
package rag

import (
	"context"
	"log"
	"strings"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/accord/config"
)

// Chunk is one passage of a knowledge-base document.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

// Hit is a chunk returned by a similarity search.
type Hit struct {
	Chunk
	Score float64 `json:"score"`
}

// Store persists chunks with their embeddings.
type Store interface {
	// Upsert embeds and stores chunks, replacing any with the same ID.
	Upsert(ctx context.Context, chunks []Chunk) (int, error)
	// Search returns up to k chunks most similar to query, best first.
	Search(ctx context.Context, query string, k int) ([]Hit, error)
	Close() error
}

// Retriever is the read side of a Store.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]Hit, error)
}

// New opens the store selected by cfg.Store. A remote store that cannot be
// reached falls back to the in-memory store.
func New(ctx context.Context, cfg config.RAGConfig, emb Embedder, logger *log.Logger) (Store, error) {
	if emb == nil {
		return nil, errors.New("embedder is required")
	}
	if logger == nil {
		logger = log.Default()
	}

	var (
		s   Store
		err error
	)
	switch cfg.Store {
	case "pgvector":
		s, err = NewPgVectorStore(ctx, cfg.PostgresURL, cfg.Dim, emb)
	case "milvus":
		s, err = NewMilvusStore(ctx, MilvusConfig{
			Address:    cfg.MilvusAddr,
			Username:   cfg.MilvusUsername,
			Password:   cfg.MilvusPassword,
			Collection: cfg.MilvusCollection,
			Dim:        cfg.Dim,
		}, emb)
	default:
		return NewMemoryStore(cfg.MemoryPath, emb)
	}
	if err != nil {
		logger.Printf("⚠️ %s store unavailable, falling back to memory: %v", cfg.Store, err)
		return NewMemoryStore(cfg.MemoryPath, emb)
	}
	logger.Printf("✅ Connected to %s vector store", cfg.Store)
	return s, nil
}

// Context retrieves the k passages closest to query and joins them with
// blank lines.
func Context(ctx context.Context, r Retriever, query string, k int) (string, error) {
	hits, err := r.Search(ctx, query, k)
	if err != nil {
		return "", err
	}
	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Text)
	}
	return strings.Join(texts, "\n\n"), nil
}
