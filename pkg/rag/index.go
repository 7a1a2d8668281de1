package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/admitline/admitline/pkg/docstore"
)

// Index is an immutable snapshot of the vectorized corpus. Build a new one
// with BuildIndex and install it on a Retriever with Swap.
type Index struct {
	chunks []Chunk
	// docs holds the full text of every source document, for forced
	// injection of whole documents.
	docs map[string]string
	vec  *vectorizer
}

// Len returns the number of chunks in the index.
func (x *Index) Len() int { return len(x.chunks) }

// Sources returns the names of all indexed documents, sorted.
func (x *Index) Sources() []string {
	names := make([]string, 0, len(x.docs))
	for name := range x.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexConfig controls chunking during BuildIndex. The zero value uses the
// package defaults.
type IndexConfig struct {
	ChunkSize     int
	JSONChunkSize int
	ChunkOverlap  int
}

func (c IndexConfig) withDefaults() IndexConfig {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.JSONChunkSize <= 0 {
		c.JSONChunkSize = DefaultJSONChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	return c
}

// BuildIndex reads every document from src, chunks and vectorizes it, and
// returns the fitted index. Unreadable or empty documents are skipped with
// a warning; JSON documents that fail to parse are indexed as plain text.
// Returns ErrNoChunks if nothing usable was found.
func BuildIndex(ctx context.Context, src docstore.Source, cfg IndexConfig) (*Index, error) {
	cfg = cfg.withDefaults()

	names, err := src.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("rag: list sources: %w", err)
	}

	idx := &Index{docs: make(map[string]string)}
	for _, name := range names {
		data, err := src.Read(ctx, name)
		if err != nil {
			slog.Warn("skipping unreadable document", "name", name, "error", err)
			continue
		}
		text := string(bytes.TrimSpace(data))
		if text == "" {
			continue
		}

		maxLen := cfg.ChunkSize
		if path.Ext(name) == ".json" {
			// Pretty-print so chunk boundaries fall between fields
			// rather than mid-token in a one-line blob.
			var buf bytes.Buffer
			if err := json.Indent(&buf, []byte(text), "", "  "); err == nil {
				text = buf.String()
			} else {
				slog.Warn("indexing malformed json as plain text", "name", name, "error", err)
			}
			maxLen = cfg.JSONChunkSize
		}

		idx.docs[name] = text
		for _, c := range chunkText(text, maxLen, cfg.ChunkOverlap) {
			idx.chunks = append(idx.chunks, Chunk{Source: name, Text: c})
		}
	}

	if len(idx.chunks) == 0 {
		return nil, ErrNoChunks
	}

	texts := make([]string, len(idx.chunks))
	for i, c := range idx.chunks {
		texts[i] = c.Text
	}
	idx.vec = fitVectorizer(texts)
	if idx.vec == nil {
		return nil, ErrNoChunks
	}
	for i := range idx.chunks {
		idx.chunks[i].vector = idx.vec.transform(idx.chunks[i].Text)
	}

	slog.Info("context index built", "documents", len(idx.docs), "chunks", len(idx.chunks), "vocabulary", len(idx.vec.vocab))
	return idx, nil
}
