package rag

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

const upsertBatch = 64

// Ingester loads the knowledge base directory into a Store.
type Ingester struct {
	Store    Store
	Splitter *Splitter
	Logger   *log.Logger
}

func NewIngester(store Store, splitter *Splitter, logger *log.Logger) (*Ingester, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if splitter == nil {
		return nil, errors.New("splitter is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Ingester{Store: store, Splitter: splitter, Logger: logger}, nil
}

// Ingest reads every .pdf and .txt file under dir. Files that cannot be read
// are logged and skipped. It returns the number of chunks stored.
func (in *Ingester) Ingest(ctx context.Context, dir string) (int, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "knowledge base %s", dir)
	}
	if !info.IsDir() {
		return 0, errors.Errorf("knowledge base %s is not a directory", dir)
	}

	var chunks []Chunk
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		text, ok, err := loadDocument(path)
		if !ok {
			return nil
		}
		if err != nil {
			in.Logger.Printf("❌ Skipping %s: %v", path, err)
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		pieces, err := in.Splitter.Split(text)
		if err != nil {
			in.Logger.Printf("❌ Skipping %s: %v", path, err)
			return nil
		}
		for i, p := range pieces {
			chunks = append(chunks, Chunk{ID: chunkID(rel, i), Source: rel, Text: p})
		}
		in.Logger.Printf("Loaded %s: %d chunks", rel, len(pieces))
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "walk knowledge base")
	}
	if len(chunks) == 0 {
		in.Logger.Printf("No documents found in %s", dir)
		return 0, nil
	}

	stored := 0
	for start := 0; start < len(chunks); start += upsertBatch {
		end := start + upsertBatch
		if end > len(chunks) {
			end = len(chunks)
		}
		n, err := in.Store.Upsert(ctx, chunks[start:end])
		stored += n
		if err != nil {
			return stored, errors.Wrapf(err, "store chunks %d-%d", start, end)
		}
	}
	in.Logger.Printf("✅ Ingested %d chunks from %s", stored, dir)
	return stored, nil
}

// chunkID is stable so re-ingesting a file replaces its chunks.
func chunkID(source string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("accord:%s#%d", filepath.ToSlash(source), i))).String()
}

// loadDocument reports ok=false for file types it does not handle.
func loadDocument(path string) (text string, ok bool, err error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		b, err := os.ReadFile(path)
		return string(b), true, err
	case ".pdf":
		text, err := readPDF(path)
		return text, true, err
	default:
		return "", false, nil
	}
}

func readPDF(path string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("malformed pdf: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "open pdf")
	}
	defer f.Close()
	plain, err := r.GetPlainText()
	if err != nil {
		return "", errors.Wrap(err, "extract pdf text")
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", errors.Wrap(err, "read pdf text")
	}
	return buf.String(), nil
}
