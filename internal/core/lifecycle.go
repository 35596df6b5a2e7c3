package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/valter-silva-au/taskledger/pkg/models"
)

// validTagPattern matches lowercase kebab-case tags of up to 32 characters.
var validTagPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,31}$`)

// LifecycleService defines the operations that move a task between ownership
// and execution states and record its progress. Every operation runs in its
// own transaction and re-reads the task inside it; nothing is cached between
// calls.
type LifecycleService interface {
	CreateTask(ctx context.Context, actorID string, input models.NewTask) (*models.Task, error)
	GetTask(ctx context.Context, taskID string) (*models.Task, error)
	ClaimTask(ctx context.Context, taskID, actorID string) (*models.Task, error)
	UnclaimTask(ctx context.Context, taskID, actorID string) (*models.Task, error)
	UpdateStatus(ctx context.Context, taskID, actorID string, status models.TaskStatus, payload models.TransitionPayload) (*models.Task, error)
	UpdateProgress(ctx context.Context, taskID, actorID string, percentage int, notes string) (*models.Task, error)
	GetTaskProgressLogs(ctx context.Context, taskID string) ([]models.ProgressLogEntry, error)
}

// LifecycleOption configures the lifecycle service.
type LifecycleOption func(*lifecycleService)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) LifecycleOption {
	return func(s *lifecycleService) {
		s.now = now
	}
}

// WithIDGenerator sets the generator used for task and ledger entry ids.
func WithIDGenerator(gen IDGenerator) LifecycleOption {
	return func(s *lifecycleService) {
		s.newID = gen
	}
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) LifecycleOption {
	return func(s *lifecycleService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// lifecycleService implements LifecycleService on top of a TaskStore.
type lifecycleService struct {
	store  TaskStore
	events EventLogger
	logger *slog.Logger
	now    func() time.Time
	newID  IDGenerator
}

// NewLifecycleService creates a LifecycleService. events may be nil when no
// audit sink is configured.
func NewLifecycleService(store TaskStore, events EventLogger, opts ...LifecycleOption) LifecycleService {
	s := &lifecycleService{
		store:  store,
		events: events,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  NewUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateTask validates the input, checks that every dependency exists and
// stores the task as UNCLAIMED, or CLAIMED when an assignee is given.
func (s *lifecycleService) CreateTask(ctx context.Context, actorID string, input models.NewTask) (*models.Task, error) {
	task, err := s.buildTask(actorID, input)
	if err != nil {
		return nil, s.fail("create", task.ID, actorID, err)
	}

	err = s.store.WithinTx(ctx, func(tx TaskTx) error {
		existing, err := tx.GetTask(ctx, task.ID)
		if err != nil {
			return &StorageError{Op: "reading task", Err: err}
		}
		if existing != nil {
			return validationErrorf("task %s already exists", task.ID)
		}

		if len(task.Dependencies) > 0 {
			missing, err := tx.MissingTaskIDs(ctx, task.Dependencies)
			if err != nil {
				return &StorageError{Op: "checking dependencies", Err: err}
			}
			if len(missing) > 0 {
				return validationErrorf("dependencies not found: %s", strings.Join(missing, ", "))
			}
		}

		if err := tx.InsertTask(ctx, task); err != nil {
			if errors.Is(err, ErrTaskExists) {
				return validationErrorf("task %s already exists", task.ID)
			}
			return &StorageError{Op: "inserting task", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("create", task.ID, actorID, err)
	}

	s.logger.Debug("task created", "op", "create", "task_id", task.ID, "actor_id", actorID, "status", task.Status)
	s.emit(EventTaskCreated, map[string]any{
		"task_id":  task.ID,
		"actor_id": actorID,
		"status":   string(task.Status),
	})
	return task, nil
}

func (s *lifecycleService) buildTask(actorID string, input models.NewTask) (*models.Task, error) {
	now := s.now()
	task := &models.Task{
		ID:            strings.TrimSpace(input.ID),
		Title:         strings.TrimSpace(input.Title),
		Status:        models.StatusUnclaimed,
		Dependencies:  dedupe(input.Dependencies),
		Collaborators: dedupe(input.Collaborators),
		Tags:          dedupe(input.Tags),
		CreatedBy:     actorID,
		Created:       now,
		Updated:       now,
	}
	if task.ID == "" {
		task.ID = s.newID()
	}

	var problems []string
	if task.Title == "" {
		problems = append(problems, "title must not be empty")
	}
	if strings.TrimSpace(actorID) == "" {
		problems = append(problems, "actor id must not be empty")
	}
	for _, tag := range task.Tags {
		if !validTagPattern.MatchString(tag) {
			problems = append(problems, fmt.Sprintf("tag %q is invalid, must match %s", tag, validTagPattern))
		}
	}
	for _, dep := range task.Dependencies {
		if dep == task.ID {
			problems = append(problems, "a task cannot depend on itself")
		}
	}
	if len(problems) > 0 {
		return task, &ValidationError{Problems: problems}
	}

	if assignee := strings.TrimSpace(input.AssigneeID); assignee != "" {
		task.Status = models.StatusClaimed
		task.AssigneeID = &assignee
	}
	return task, nil
}

// GetTask returns the task with the given id.
func (s *lifecycleService) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var task *models.Task
	err := s.store.WithinTx(ctx, func(tx TaskTx) error {
		var err error
		task, err = readTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, s.fail("get", taskID, "", err)
	}
	return task, nil
}

// ClaimTask assigns an UNCLAIMED task to actorID. The status check is part
// of the write itself, so of two concurrent claims exactly one succeeds and
// the other gets ErrTaskNotClaimable.
func (s *lifecycleService) ClaimTask(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	if err := requireIDs(taskID, actorID); err != nil {
		return nil, s.fail("claim", taskID, actorID, err)
	}

	claimed := models.StatusClaimed
	changes := models.TaskChanges{
		Status:     &claimed,
		AssigneeID: models.Set(actorID),
		Updated:    s.now(),
	}
	pred := models.TaskPredicate{
		ID:       taskID,
		Statuses: []models.TaskStatus{models.StatusUnclaimed},
	}

	var task *models.Task
	err := s.store.WithinTx(ctx, func(tx TaskTx) error {
		n, err := tx.ConditionalUpdate(ctx, pred, changes)
		if err != nil {
			return &StorageError{Op: "claiming task", Err: err}
		}
		if n == 0 {
			return ErrTaskNotClaimable
		}
		task, err = readTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, s.fail("claim", taskID, actorID, err)
	}

	s.logger.Debug("task claimed", "op", "claim", "task_id", taskID, "actor_id", actorID)
	s.emit(EventTaskClaimed, map[string]any{
		"task_id":  taskID,
		"actor_id": actorID,
	})
	return task, nil
}

// UnclaimTask releases a CLAIMED or IN_PROGRESS task held by actorID and
// resets its progress. This is the only way to leave IN_PROGRESS for
// UNCLAIMED; UpdateStatus refuses that move.
func (s *lifecycleService) UnclaimTask(ctx context.Context, taskID, actorID string) (*models.Task, error) {
	if err := requireIDs(taskID, actorID); err != nil {
		return nil, s.fail("unclaim", taskID, actorID, err)
	}

	unclaimed := models.StatusUnclaimed
	changes := models.TaskChanges{
		Status:             &unclaimed,
		AssigneeID:         models.Clear[string](),
		ProgressPercentage: intPtr(0),
		Updated:            s.now(),
	}
	pred := models.TaskPredicate{
		ID:         taskID,
		Statuses:   []models.TaskStatus{models.StatusClaimed, models.StatusInProgress},
		AssigneeID: &actorID,
	}

	var task *models.Task
	err := s.store.WithinTx(ctx, func(tx TaskTx) error {
		n, err := tx.ConditionalUpdate(ctx, pred, changes)
		if err != nil {
			return &StorageError{Op: "unclaiming task", Err: err}
		}
		if n == 0 {
			return ErrTaskNotUnclaimable
		}
		task, err = readTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, s.fail("unclaim", taskID, actorID, err)
	}

	s.logger.Debug("task unclaimed", "op", "unclaim", "task_id", taskID, "actor_id", actorID)
	s.emit(EventTaskUnclaimed, map[string]any{
		"task_id":  taskID,
		"actor_id": actorID,
	})
	return task, nil
}

// UpdateStatus moves a task to status if the transition table allows it.
// CLAIMED and UNCLAIMED are never accepted here; they belong to ClaimTask and
// UnclaimTask.
func (s *lifecycleService) UpdateStatus(ctx context.Context, taskID, actorID string, status models.TaskStatus, payload models.TransitionPayload) (*models.Task, error) {
	if !status.IsValid() {
		return nil, s.fail("update_status", taskID, actorID, validationErrorf("unknown status %q", status))
	}

	var (
		task *models.Task
		from models.TaskStatus
	)
	err := s.store.WithinTx(ctx, func(tx TaskTx) error {
		current, err := readTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		from = current.Status

		if status == models.StatusUnclaimed || status == models.StatusClaimed {
			return &TransitionError{From: from, To: status}
		}

		changes, err := DecideTransition(*current, status, payload, s.now())
		if err != nil {
			return err
		}

		if err := writeChanges(ctx, tx, current, changes); err != nil {
			return err
		}
		task, err = readTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, s.fail("update_status", taskID, actorID, err)
	}

	s.logger.Debug("task status changed", "op", "update_status", "task_id", taskID, "actor_id", actorID,
		"from", from, "to", status)
	s.emit(EventTaskStatusChanged, map[string]any{
		"task_id":  taskID,
		"actor_id": actorID,
		"from":     string(from),
		"to":       string(status),
	})
	if status == models.StatusDone {
		s.emit(EventTaskCompleted, map[string]any{"task_id": taskID, "actor_id": actorID})
	}
	return task, nil
}

// UpdateProgress records a progress report. The task mutation and its ledger
// entry are written in the same transaction: either both exist or neither.
func (s *lifecycleService) UpdateProgress(ctx context.Context, taskID, actorID string, percentage int, notes string) (*models.Task, error) {
	if percentage < 0 || percentage > 100 {
		return nil, s.fail("update_progress", taskID, actorID,
			validationErrorf("progress percentage must be between 0 and 100, got %d", percentage))
	}
	if err := requireIDs(taskID, actorID); err != nil {
		return nil, s.fail("update_progress", taskID, actorID, err)
	}

	var (
		task  *models.Task
		entry models.ProgressLogEntry
		from  models.TaskStatus
	)
	err := s.store.WithinTx(ctx, func(tx TaskTx) error {
		current, err := readTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		from = current.Status

		// Reports need an owner and an open task.
		if current.Status == models.StatusUnclaimed || current.Status == models.StatusDone {
			return &TransitionError{From: current.Status, To: models.StatusInProgress}
		}

		now := s.now()
		changes := decideProgress(*current, percentage, now)
		if err := writeChanges(ctx, tx, current, changes); err != nil {
			return err
		}

		entry = newProgressEntry(s.newID(), taskID, actorID, current.ProgressPercentage, percentage, strings.TrimSpace(notes), now)
		if err := tx.AppendProgressLog(ctx, entry); err != nil {
			return &StorageError{Op: "appending progress log", Err: err}
		}

		task, err = readTask(ctx, tx, taskID)
		return err
	})
	if err != nil {
		return nil, s.fail("update_progress", taskID, actorID, err)
	}

	if !task.CanReportProgress(actorID) {
		s.logger.Info("progress reported by actor outside assignee and collaborators",
			"op", "update_progress", "task_id", taskID, "actor_id", actorID)
	}
	s.logger.Debug("task progress reported", "op", "update_progress", "task_id", taskID, "actor_id", actorID,
		"percentage", percentage, "delta", entry.ProgressDelta)
	s.emit(EventTaskProgressReported, map[string]any{
		"task_id":     taskID,
		"actor_id":    actorID,
		"percentage":  percentage,
		"delta":       entry.ProgressDelta,
		"report_type": string(entry.ReportType),
	})
	if task.Status == models.StatusDone && from != models.StatusDone {
		s.emit(EventTaskCompleted, map[string]any{"task_id": taskID, "actor_id": actorID})
	}
	return task, nil
}

// GetTaskProgressLogs returns the task's ledger, newest first. An unknown
// task is ErrTaskNotFound, not an empty ledger.
func (s *lifecycleService) GetTaskProgressLogs(ctx context.Context, taskID string) ([]models.ProgressLogEntry, error) {
	var entries []models.ProgressLogEntry
	err := s.store.WithinTx(ctx, func(tx TaskTx) error {
		if _, err := readTask(ctx, tx, taskID); err != nil {
			return err
		}
		var err error
		entries, err = tx.ListProgressLogs(ctx, taskID)
		if err != nil {
			return &StorageError{Op: "listing progress logs", Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("get_progress_logs", taskID, "", err)
	}
	return entries, nil
}

// readTask loads a task inside tx, turning absence into ErrTaskNotFound.
func readTask(ctx context.Context, tx TaskTx, taskID string) (*models.Task, error) {
	task, err := tx.GetTask(ctx, taskID)
	if err != nil {
		return nil, &StorageError{Op: "reading task", Err: err}
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	return task, nil
}

// writeChanges applies changes guarded by the status read earlier in the
// same transaction.
func writeChanges(ctx context.Context, tx TaskTx, current *models.Task, changes models.TaskChanges) error {
	n, err := tx.ConditionalUpdate(ctx, models.TaskPredicate{
		ID:       current.ID,
		Statuses: []models.TaskStatus{current.Status},
	}, changes)
	if err != nil {
		return &StorageError{Op: "updating task", Err: err}
	}
	if n == 0 {
		// The row was read in this transaction; losing it means it was
		// removed underneath us.
		return ErrTaskNotFound
	}
	return nil
}

// fail logs a rejected or failed operation and normalises the error: domain
// errors pass through unchanged, anything else becomes a StorageError.
func (s *lifecycleService) fail(op, taskID, actorID string, err error) error {
	class := ErrorClass(err)
	if class != ClassFatal {
		s.logger.Info("operation rejected", "op", op, "task_id", taskID, "actor_id", actorID, "error", err)
		return err
	}

	s.logger.Error("operation failed", "op", op, "task_id", taskID, "actor_id", actorID, "error", err)
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (s *lifecycleService) emit(eventType string, data map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.LogEvent(eventType, data); err != nil {
		s.logger.Warn("writing lifecycle event", "type", eventType, "error", err)
	}
}

func requireIDs(taskID, actorID string) error {
	var problems []string
	if strings.TrimSpace(taskID) == "" {
		problems = append(problems, "task id must not be empty")
	}
	if strings.TrimSpace(actorID) == "" {
		problems = append(problems, "actor id must not be empty")
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
