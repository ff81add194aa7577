package rag

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"
)

type memoryEntry struct {
	Chunk  Chunk     `json:"chunk"`
	Vector []float32 `json:"vector"`
}

// MemoryStore keeps vectors in a map, optionally persisted to a JSON file so
// that `accord ingest` and `accord serve` can share it.
type MemoryStore struct {
	mu       sync.RWMutex
	path     string
	order    []string
	entries  map[string]memoryEntry
	embedder Embedder
}

// NewMemoryStore loads path when it exists. An empty path keeps everything
// in memory only.
func NewMemoryStore(path string, emb Embedder) (*MemoryStore, error) {
	s := &MemoryStore{path: path, entries: map[string]memoryEntry{}, embedder: emb}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read memory store")
	}
	var saved []memoryEntry
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, errors.Wrapf(err, "parse memory store %s", path)
	}
	for _, e := range saved {
		s.put(e)
	}
	return s, nil
}

func (s *MemoryStore) put(e memoryEntry) {
	if _, ok := s.entries[e.Chunk.ID]; !ok {
		s.order = append(s.order, e.Chunk.ID)
	}
	s.entries[e.Chunk.ID] = e
}

func (s *MemoryStore) Upsert(ctx context.Context, chunks []Chunk) (int, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		s.put(memoryEntry{Chunk: c, Vector: vectors[i]})
	}
	if err := s.save(); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (s *MemoryStore) save() error {
	if s.path == "" {
		return nil
	}
	saved := make([]memoryEntry, 0, len(s.order))
	for _, id := range s.order {
		saved = append(saved, s.entries[id])
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return errors.Wrap(err, "encode memory store")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errors.Wrap(err, "create memory store dir")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "write memory store")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "replace memory store")
}

func (s *MemoryStore) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	qv, err := embedOne(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	hits := make([]Hit, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		hits = append(hits, Hit{Chunk: e.Chunk, Score: cosine(qv, e.Vector)})
	}
	s.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len is the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *MemoryStore) Close() error { return nil }

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
