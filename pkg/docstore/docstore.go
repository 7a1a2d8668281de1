// Package docstore abstracts where the retrieval corpus lives. A Source
// enumerates and reads the institutional documents the context index is
// built from, so the corpus can sit in a local directory during development
// and in an S3 bucket in production without changing the index build.
//
// Only .txt and .json files are considered source documents; everything
// else is skipped.
package docstore

import (
	"context"
	"os"
	"path"
	"sort"
)

// Source enumerates and reads source documents by name.
// Implementations must be safe for concurrent use.
type Source interface {
	// List returns the names of all source documents, sorted.
	List(ctx context.Context) ([]string, error)

	// Read returns the full content of the named document.
	// If the document does not exist, an error wrapping os.ErrNotExist
	// is returned.
	Read(ctx context.Context, name string) ([]byte, error)
}

// IsSourceName reports whether name is a usable source document.
func IsSourceName(name string) bool {
	switch path.Ext(name) {
	case ".txt", ".json":
		return true
	default:
		return false
	}
}

// Dir is a Source backed by a flat local directory.
type Dir struct {
	dir string
}

// NewDir creates a Dir source. The directory is created if it does not
// already exist, so a fresh deployment starts with an empty corpus rather
// than an error.
func NewDir(dir string) (*Dir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Dir{dir: dir}, nil
}

func (d *Dir) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsSourceName(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (d *Dir) Read(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(path.Join(d.dir, path.Base(name)))
}
