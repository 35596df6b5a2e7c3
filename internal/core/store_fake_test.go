package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/valter-silva-au/taskledger/pkg/models"
)

// fakeStore implements TaskStore in memory for lifecycle tests. Each
// transaction works on copies that replace the live state on success.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*models.Task
	logs  []models.ProgressLogEntry

	// failOn names a TaskTx method that returns errFakeStore when called.
	failOn string
	// unseen ids exist but GetTask reports them absent, as a read that ran
	// before a concurrent insert committed would.
	unseen map[string]bool
}

var errFakeStore = errors.New("fake store offline")

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[string]*models.Task)}
}

func (s *fakeStore) WithinTx(ctx context.Context, fn func(tx TaskTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &fakeTx{
		tasks:  make(map[string]*models.Task, len(s.tasks)),
		logs:   append([]models.ProgressLogEntry(nil), s.logs...),
		failOn: s.failOn,
		unseen: s.unseen,
	}
	for id, t := range s.tasks {
		tx.tasks[id] = t.Clone()
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.tasks = tx.tasks
	s.logs = tx.logs
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) ledgerLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

type fakeTx struct {
	tasks  map[string]*models.Task
	logs   []models.ProgressLogEntry
	failOn string
	unseen map[string]bool
}

func (tx *fakeTx) fail(method string) error {
	if tx.failOn == method {
		return errFakeStore
	}
	return nil
}

func (tx *fakeTx) GetTask(_ context.Context, taskID string) (*models.Task, error) {
	if err := tx.fail("GetTask"); err != nil {
		return nil, err
	}
	t, ok := tx.tasks[taskID]
	if !ok || tx.unseen[taskID] {
		return nil, nil
	}
	return t.Clone(), nil
}

func (tx *fakeTx) InsertTask(_ context.Context, task *models.Task) error {
	if err := tx.fail("InsertTask"); err != nil {
		return err
	}
	if _, ok := tx.tasks[task.ID]; ok {
		return fmt.Errorf("insert %s: %w", task.ID, ErrTaskExists)
	}
	tx.tasks[task.ID] = task.Clone()
	return nil
}

func (tx *fakeTx) MissingTaskIDs(_ context.Context, taskIDs []string) ([]string, error) {
	var missing []string
	for _, id := range taskIDs {
		if _, ok := tx.tasks[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (tx *fakeTx) ConditionalUpdate(_ context.Context, pred models.TaskPredicate, changes models.TaskChanges) (int64, error) {
	if err := tx.fail("ConditionalUpdate"); err != nil {
		return 0, err
	}
	t, ok := tx.tasks[pred.ID]
	if !ok || !pred.Matches(t) {
		return 0, nil
	}
	changes.ApplyTo(t)
	return 1, nil
}

func (tx *fakeTx) AppendProgressLog(_ context.Context, entry models.ProgressLogEntry) error {
	if err := tx.fail("AppendProgressLog"); err != nil {
		return err
	}
	tx.logs = append(tx.logs, entry)
	return nil
}

func (tx *fakeTx) ListProgressLogs(_ context.Context, taskID string) ([]models.ProgressLogEntry, error) {
	var out []models.ProgressLogEntry
	for _, e := range tx.logs {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	SortNewestFirst(out)
	return out, nil
}

// recordedEvent is one call to recordingEvents.LogEvent.
type recordedEvent struct {
	Type string
	Data map[string]any
}

// recordingEvents is an EventLogger that keeps every event in memory.
type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
	err    error
}

func (r *recordingEvents) LogEvent(eventType string, data map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Type: eventType, Data: data})
	return r.err
}

func (r *recordingEvents) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
