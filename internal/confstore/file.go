package confstore

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// File keeps configuration records in a TOML file, one table per pid:
//
//	["org.ops4j.pax.logging"]
//	"log4j.rootLogger" = "INFO, stdout"
//	"log4j.logger.a.b" = "WARN"
//
// The file is read on every Get so external edits are visible immediately.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a store backed by path. The file need not exist yet.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Get returns the properties of pid. A missing file or table yields an empty map.
func (f *File) Get(ctx context.Context, pid string) (map[string]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	props := doc[pid]
	if props == nil {
		props = map[string]string{}
	}
	return props, nil
}

// Update replaces the properties of pid and rewrites the file atomically.
func (f *File) Update(ctx context.Context, pid string, props map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc[pid] = maps.Clone(props)
	if doc[pid] == nil {
		doc[pid] = map[string]string{}
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal levels: %w", err)
	}
	return writeAtomic(f.path, data)
}

func (f *File) load() (map[string]map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]map[string]string{}, nil
		}
		return nil, fmt.Errorf("read levels: %w", err)
	}

	doc := map[string]map[string]string{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse levels %s: %w", f.path, err)
	}
	return doc, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create levels dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write levels: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write levels: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod levels: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace levels: %w", err)
	}
	return nil
}
