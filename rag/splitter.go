package rag

import (
	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter cuts text into overlapping chunks, preferring paragraph breaks,
// then line breaks, then spaces. Sizes count characters.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	rc           textsplitter.RecursiveCharacter
}

func NewSplitter(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, errors.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, errors.Errorf("chunk overlap %d must be in [0, %d)", overlap, size)
	}
	return &Splitter{
		ChunkSize:    size,
		ChunkOverlap: overlap,
		rc: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
		),
	}, nil
}

func (s *Splitter) Split(text string) ([]string, error) {
	chunks, err := s.rc.SplitText(text)
	if err != nil {
		return nil, errors.Wrap(err, "split text")
	}
	return chunks, nil
}
