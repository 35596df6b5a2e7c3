package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/valter-silva-au/taskledger/internal/core"
	"gopkg.in/yaml.v3"
)

// FileStore persists tasks and the progress ledger in a single YAML
// document. A transaction holds an exclusive lock on <path>.lock, so separate
// processes sharing the file are serialized as well as goroutines. Commits
// write a temporary file and rename it over the document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

var _ core.TaskStore = (*FileStore)(nil)

// NewFileStore creates a store backed by the YAML file at path. The file is
// created on the first committed transaction.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("creating file store: path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating file store: creating directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the document path.
func (s *FileStore) Path() string { return s.path }

// WithinTx loads the document under the file lock, runs fn on it and saves
// the result if fn returns nil. On error the file is left untouched.
func (s *FileStore) WithinTx(ctx context.Context, fn func(tx core.TaskTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	unlock, err := lockFile(s.path + ".lock")
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	doc, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&documentTx{doc: doc}); err != nil {
		return err
	}
	return s.save(doc)
}

// Close is a no-op; the lock is only held inside WithinTx.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (*taskDocument, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return newTaskDocument(), nil
		}
		return nil, fmt.Errorf("loading task document: %w", err)
	}

	doc := newTaskDocument()
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("loading task document: parsing YAML: %w", err)
	}
	if doc.Tasks == nil {
		doc.Tasks = newTaskDocument().Tasks
	}
	return doc, nil
}

func (s *FileStore) save(doc *taskDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("saving task document: marshaling YAML: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("saving task document: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("saving task document: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("saving task document: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("saving task document: replacing file: %w", err)
	}
	return nil
}
