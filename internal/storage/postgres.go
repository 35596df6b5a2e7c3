package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valter-silva-au/taskledger/internal/core"
	"github.com/valter-silva-au/taskledger/pkg/models"
)

const (
	tasksTable        = "tasks"
	progressLogsTable = "task_progress_logs"
)

// PostgresStore implements core.TaskStore on PostgreSQL. Transactions run at
// READ COMMITTED; GetTask locks the row with SELECT ... FOR UPDATE and every
// write is a conditional UPDATE whose affected-row count tells the caller
// whether the guard held.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ core.TaskStore = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgres connects to dsn, verifies the connection and creates the
// schema if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tasks and task_progress_logs tables if they don't
// exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("task store not initialized")
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS ` + tasksTable + ` (
    id                  TEXT PRIMARY KEY,
    title               TEXT NOT NULL,
    status              TEXT NOT NULL DEFAULT 'UNCLAIMED',
    assignee_id         TEXT,
    progress_percentage INTEGER NOT NULL DEFAULT 0 CHECK (progress_percentage BETWEEN 0 AND 100),
    pause_reason        TEXT,
    pause_note          TEXT,
    paused_at           TIMESTAMPTZ,
    blocker_reason      TEXT,
    actual_start_date   TIMESTAMPTZ,
    actual_end_date     TIMESTAMPTZ,
    closed_at           TIMESTAMPTZ,
    dependencies        TEXT[] NOT NULL DEFAULT '{}',
    collaborators       TEXT[] NOT NULL DEFAULT '{}',
    tags                TEXT[] NOT NULL DEFAULT '{}',
    created_by          TEXT NOT NULL DEFAULT '',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON ` + tasksTable + ` (status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON ` + tasksTable + ` (assignee_id)`,

		`CREATE TABLE IF NOT EXISTS ` + progressLogsTable + ` (
    seq                 BIGSERIAL PRIMARY KEY,
    id                  TEXT NOT NULL UNIQUE,
    task_id             TEXT NOT NULL REFERENCES ` + tasksTable + `(id) ON DELETE CASCADE,
    actor_id            TEXT NOT NULL,
    progress_percentage INTEGER NOT NULL,
    progress_delta      INTEGER NOT NULL,
    report_type         TEXT NOT NULL,
    notes               TEXT NOT NULL DEFAULT '',
    reported_at         TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_task_progress_logs_task ON ` + progressLogsTable + ` (task_id, reported_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure task schema: %w", err)
		}
	}
	return nil
}

// WithinTx runs fn inside a database transaction, committing when fn
// returns nil and rolling back otherwise.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx core.TaskTx) error) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("task store not initialized")
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// postgresTx implements core.TaskTx on an open pgx transaction.
type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM `+tasksTable+` WHERE id = $1 FOR UPDATE`, taskID)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (t *postgresTx) InsertTask(ctx context.Context, task *models.Task) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO `+tasksTable+` (`+taskColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		task.ID, task.Title, string(task.Status), task.AssigneeID, task.ProgressPercentage,
		task.PauseReason, task.PauseNote, task.PausedAt, task.BlockerReason,
		task.ActualStartDate, task.ActualEndDate, task.ClosedAt,
		nonNil(task.Dependencies), nonNil(task.Collaborators), nonNil(task.Tags),
		task.CreatedBy, task.Created, task.Updated,
	)
	return insertTaskError(task.ID, err)
}

// uniqueViolation is the SQLSTATE postgres reports for a duplicate key.
const uniqueViolation = "23505"

// insertTaskError maps a primary key collision onto core.ErrTaskExists. It
// happens when a concurrent CreateTask commits the same id between our
// GetTask and INSERT.
func insertTaskError(taskID string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("insert task %s: %w", taskID, core.ErrTaskExists)
	}
	return fmt.Errorf("insert task: %w", err)
}

func (t *postgresTx) MissingTaskIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := t.tx.Query(ctx, `SELECT id FROM `+tasksTable+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("check task ids: %w", err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("check task ids: %w", err)
	}

	present := make(map[string]bool, len(found))
	for _, id := range found {
		present[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (t *postgresTx) ConditionalUpdate(ctx context.Context, pred models.TaskPredicate, changes models.TaskChanges) (int64, error) {
	query, args := buildConditionalUpdate(pred, changes)
	tag, err := t.tx.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("conditional update: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *postgresTx) AppendProgressLog(ctx context.Context, entry models.ProgressLogEntry) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO `+progressLogsTable+` (id, task_id, actor_id, progress_percentage, progress_delta, report_type, notes, reported_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.TaskID, entry.ActorID, entry.ProgressPercentage, entry.ProgressDelta,
		string(entry.ReportType), entry.Notes, entry.ReportedAt,
	)
	if err != nil {
		return fmt.Errorf("append progress log: %w", err)
	}
	return nil
}

func (t *postgresTx) ListProgressLogs(ctx context.Context, taskID string) ([]models.ProgressLogEntry, error) {
	rows, err := t.tx.Query(ctx, `
SELECT id, task_id, actor_id, progress_percentage, progress_delta, report_type, notes, reported_at
FROM `+progressLogsTable+`
WHERE task_id = $1
ORDER BY reported_at DESC, seq DESC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("list progress logs: %w", err)
	}
	defer rows.Close()

	var entries []models.ProgressLogEntry
	for rows.Next() {
		var (
			e          models.ProgressLogEntry
			reportType string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &e.ActorID, &e.ProgressPercentage, &e.ProgressDelta,
			&reportType, &e.Notes, &e.ReportedAt); err != nil {
			return nil, fmt.Errorf("scan progress log: %w", err)
		}
		e.ReportType = models.ReportType(reportType)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ── Internal helpers ──────────────────────────────────────────────────────────

const taskColumns = `id, title, status, assignee_id, progress_percentage,
	pause_reason, pause_note, paused_at, blocker_reason,
	actual_start_date, actual_end_date, closed_at,
	dependencies, collaborators, tags, created_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t      models.Task
		status string
	)
	err := row.Scan(
		&t.ID, &t.Title, &status, &t.AssigneeID, &t.ProgressPercentage,
		&t.PauseReason, &t.PauseNote, &t.PausedAt, &t.BlockerReason,
		&t.ActualStartDate, &t.ActualEndDate, &t.ClosedAt,
		&t.Dependencies, &t.Collaborators, &t.Tags, &t.CreatedBy, &t.Created, &t.Updated,
	)
	if err != nil {
		return nil, err
	}
	t.Status = models.TaskStatus(status)
	t.Dependencies = nilIfEmpty(t.Dependencies)
	t.Collaborators = nilIfEmpty(t.Collaborators)
	t.Tags = nilIfEmpty(t.Tags)
	return &t, nil
}

// buildConditionalUpdate renders changes as a single UPDATE guarded by pred.
// actual_start_date is wrapped in COALESCE so an existing start date is
// never overwritten.
func buildConditionalUpdate(pred models.TaskPredicate, c models.TaskChanges) (string, []any) {
	args := []any{pred.ID}
	var sets []string
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if c.Status != nil {
		set("status", string(*c.Status))
	}
	if c.ProgressPercentage != nil {
		set("progress_percentage", *c.ProgressPercentage)
	}
	if c.AssigneeID.Touched() {
		set("assignee_id", c.AssigneeID.Ptr())
	}
	if c.PauseReason.Touched() {
		set("pause_reason", c.PauseReason.Ptr())
	}
	if c.PauseNote.Touched() {
		set("pause_note", c.PauseNote.Ptr())
	}
	if c.PausedAt.Touched() {
		set("paused_at", c.PausedAt.Ptr())
	}
	if c.BlockerReason.Touched() {
		set("blocker_reason", c.BlockerReason.Ptr())
	}
	if c.ActualStartDate.Touched() {
		args = append(args, c.ActualStartDate.Ptr())
		sets = append(sets, fmt.Sprintf("actual_start_date = COALESCE(actual_start_date, $%d)", len(args)))
	}
	if c.ActualEndDate.Touched() {
		set("actual_end_date", c.ActualEndDate.Ptr())
	}
	if c.ClosedAt.Touched() {
		set("closed_at", c.ClosedAt.Ptr())
	}
	if !c.Updated.IsZero() {
		set("updated_at", c.Updated)
	}
	if len(sets) == 0 {
		sets = append(sets, "id = id")
	}

	where := []string{"id = $1"}
	if len(pred.Statuses) > 0 {
		statuses := make([]string, len(pred.Statuses))
		for i, s := range pred.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if pred.AssigneeID != nil {
		args = append(args, *pred.AssigneeID)
		where = append(where, fmt.Sprintf("assignee_id = $%d", len(args)))
	}

	query := `UPDATE ` + tasksTable + ` SET ` + strings.Join(sets, ", ") + ` WHERE ` + strings.Join(where, " AND ")
	return query, args
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
