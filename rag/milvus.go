package rag

import (
	"context"
	"unicode/utf8"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/pkg/errors"
)

const (
	milvusTextLen   = 8192
	milvusSourceLen = 1024
)

type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Dim        int
}

// MilvusStore keeps chunks in a Milvus collection with an HNSW cosine index.
type MilvusStore struct {
	mc       client.Client
	coll     string
	dim      int
	embedder Embedder
}

func NewMilvusStore(ctx context.Context, cfg MilvusConfig, emb Embedder) (*MilvusStore, error) {
	if cfg.Address == "" {
		cfg.Address = "localhost:19530"
	}
	if cfg.Collection == "" {
		cfg.Collection = "legal_chunks"
	}
	if cfg.Dim <= 0 {
		return nil, errors.Errorf("invalid embedding dimension %d", cfg.Dim)
	}
	mc, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, "connect milvus")
	}
	s := &MilvusStore{mc: mc, coll: cfg.Collection, dim: cfg.Dim, embedder: emb}
	if err := s.ensureSchemaAndIndex(ctx); err != nil {
		mc.Close()
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) ensureSchemaAndIndex(ctx context.Context) error {
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return errors.Wrap(err, "has collection")
	}
	if !has {
		schema := entity.NewSchema().WithName(s.coll).WithDescription("legal knowledge base chunks")
		schema.WithField(entity.NewField().WithName("id").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("source").WithDataType(entity.FieldTypeVarChar).WithMaxLength(milvusSourceLen))
		schema.WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(milvusTextLen))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))
		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return errors.Wrap(err, "create collection")
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return errors.Wrap(err, "new hnsw index")
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return errors.Wrap(err, "create index")
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return errors.Wrap(err, "load collection")
	}
	return nil
}

func (s *MilvusStore) Upsert(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	ids := make([]string, len(chunks))
	sources := make([]string, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		sources[i] = clip(c.Source, milvusSourceLen)
		texts[i] = clip(c.Text, milvusTextLen)
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if len(vectors) != len(chunks) {
		return 0, errors.Errorf("expected %d embeddings, got %d", len(chunks), len(vectors))
	}
	_, err = s.mc.Upsert(ctx, s.coll, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("source", sources),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return 0, errors.Wrap(err, "milvus upsert")
	}
	return len(chunks), nil
}

func (s *MilvusStore) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	qv, err := embedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}
	sp, err := entity.NewIndexHNSWSearchParam(74)
	if err != nil {
		return nil, errors.Wrap(err, "search param")
	}
	res, err := s.mc.Search(ctx, s.coll, []string{}, "", []string{"id", "source", "text"},
		[]entity.Vector{entity.FloatVector(qv)}, "vector", entity.COSINE, k, sp)
	if err != nil {
		return nil, errors.Wrap(err, "milvus search")
	}

	var hits []Hit
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		for i := 0; i < r.ResultCount; i++ {
			h := Hit{Chunk: Chunk{
				ID:     varchar(cols["id"], i),
				Source: varchar(cols["source"], i),
				Text:   varchar(cols["text"], i),
			}}
			if h.ID == "" {
				h.ID = varchar(r.IDs, i)
			}
			if i < len(r.Scores) {
				h.Score = float64(r.Scores[i])
			}
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func (s *MilvusStore) Close() error {
	return s.mc.Close()
}

func varchar(col entity.Column, i int) string {
	c, ok := col.(*entity.ColumnVarChar)
	if !ok {
		return ""
	}
	data := c.Data()
	if i >= len(data) {
		return ""
	}
	return data[i]
}

// clip shortens s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
