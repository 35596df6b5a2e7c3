package storage

import (
	"context"
	"sync"

	"github.com/valter-silva-au/taskledger/internal/core"
)

// MemoryStore keeps tasks and the progress ledger in process memory.
// Transactions are serialized; each one works on a copy of the document that
// replaces the live one only when the callback succeeds.
type MemoryStore struct {
	mu  sync.Mutex
	doc *taskDocument
}

var _ core.TaskStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{doc: newTaskDocument()}
}

// WithinTx runs fn against a private copy of the store and commits it if fn
// returns nil.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx core.TaskTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.doc.clone()
	if err := fn(&documentTx{doc: work}); err != nil {
		return err
	}
	s.doc = work
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
