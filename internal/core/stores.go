package core

import (
	"context"

	"github.com/valter-silva-au/taskledger/pkg/models"
)

// TaskStore is the persistence collaborator the lifecycle service needs.
type TaskStore interface {
	// WithinTx runs fn inside one transaction. It commits when fn returns nil
	// and rolls back when fn returns an error or panics.
	WithinTx(ctx context.Context, fn func(tx TaskTx) error) error
	Close() error
}

// TaskTx is the read/write handle available inside a transaction.
type TaskTx interface {
	// GetTask returns the task, or nil and no error when it does not exist.
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	// InsertTask fails with an error wrapping ErrTaskExists when the id is
	// already taken, including by a transaction that committed after GetTask.
	InsertTask(ctx context.Context, task *models.Task) error
	// MissingTaskIDs returns the ids from the list that do not exist.
	MissingTaskIDs(ctx context.Context, taskIDs []string) ([]string, error)
	// ConditionalUpdate applies changes to the task matching pred and returns
	// the number of rows affected (0 or 1).
	ConditionalUpdate(ctx context.Context, pred models.TaskPredicate, changes models.TaskChanges) (int64, error)
	AppendProgressLog(ctx context.Context, entry models.ProgressLogEntry) error
	// ListProgressLogs returns the task's ledger entries newest first.
	ListProgressLogs(ctx context.Context, taskID string) ([]models.ProgressLogEntry, error)
}
