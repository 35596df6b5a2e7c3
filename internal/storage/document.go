// Package storage provides the task store backends: an in-memory store, a
// YAML file store and a PostgreSQL store. All of them implement
// core.TaskStore.
package storage

import (
	"context"
	"fmt"

	"github.com/valter-silva-au/taskledger/internal/core"
	"github.com/valter-silva-au/taskledger/pkg/models"
)

// documentVersion is written at the top of every task document.
const documentVersion = "1.0"

// taskDocument is the whole persisted state of the memory and file stores.
type taskDocument struct {
	Version      string                    `yaml:"version"`
	Tasks        map[string]*models.Task   `yaml:"tasks"`
	ProgressLogs []models.ProgressLogEntry `yaml:"progress_logs,omitempty"`
}

func newTaskDocument() *taskDocument {
	return &taskDocument{
		Version: documentVersion,
		Tasks:   make(map[string]*models.Task),
	}
}

// clone returns a deep copy so a transaction can work on it and be discarded
// on rollback.
func (d *taskDocument) clone() *taskDocument {
	c := &taskDocument{
		Version:      d.Version,
		Tasks:        make(map[string]*models.Task, len(d.Tasks)),
		ProgressLogs: make([]models.ProgressLogEntry, len(d.ProgressLogs)),
	}
	for id, t := range d.Tasks {
		c.Tasks[id] = t.Clone()
	}
	copy(c.ProgressLogs, d.ProgressLogs)
	return c
}

// documentTx implements core.TaskTx over a document owned by one
// transaction.
type documentTx struct {
	doc *taskDocument
}

var _ core.TaskTx = (*documentTx)(nil)

func (tx *documentTx) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := tx.doc.Tasks[taskID]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (tx *documentTx) InsertTask(ctx context.Context, task *models.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if task.ID == "" {
		return fmt.Errorf("inserting task: ID must not be empty")
	}
	if _, exists := tx.doc.Tasks[task.ID]; exists {
		return fmt.Errorf("inserting task %s: %w", task.ID, core.ErrTaskExists)
	}
	tx.doc.Tasks[task.ID] = task.Clone()
	return nil
}

func (tx *documentTx) MissingTaskIDs(ctx context.Context, ids []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range ids {
		if _, ok := tx.doc.Tasks[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (tx *documentTx) ConditionalUpdate(ctx context.Context, pred models.TaskPredicate, changes models.TaskChanges) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t, ok := tx.doc.Tasks[pred.ID]
	if !ok || !pred.Matches(t) {
		return 0, nil
	}
	changes.ApplyTo(t)
	return 1, nil
}

func (tx *documentTx) AppendProgressLog(ctx context.Context, entry models.ProgressLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := tx.doc.Tasks[entry.TaskID]; !ok {
		return fmt.Errorf("appending progress log: task %s not found", entry.TaskID)
	}
	tx.doc.ProgressLogs = append(tx.doc.ProgressLogs, entry)
	return nil
}

func (tx *documentTx) ListProgressLogs(ctx context.Context, taskID string) ([]models.ProgressLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []models.ProgressLogEntry
	for _, e := range tx.doc.ProgressLogs {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	core.SortNewestFirst(out)
	return out, nil
}
