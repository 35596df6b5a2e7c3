package models

import "time"

// TaskStatus represents the current lifecycle state of a task.
type TaskStatus string

const (
	StatusUnclaimed  TaskStatus = "UNCLAIMED"
	StatusClaimed    TaskStatus = "CLAIMED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusPaused     TaskStatus = "PAUSED"
	StatusBlocked    TaskStatus = "BLOCKED"
	StatusDone       TaskStatus = "DONE"
)

// AllStatuses lists every lifecycle status in lifecycle order.
var AllStatuses = []TaskStatus{
	StatusUnclaimed,
	StatusClaimed,
	StatusInProgress,
	StatusPaused,
	StatusBlocked,
	StatusDone,
}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	switch s {
	case StatusUnclaimed, StatusClaimed, StatusInProgress,
		StatusPaused, StatusBlocked, StatusDone:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition leaves s.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusDone
}

// Task is a unit of work whose ownership and execution state is governed by
// the lifecycle service. Optional fields are nil when absent.
type Task struct {
	ID                 string     `yaml:"id" json:"id"`
	Title              string     `yaml:"title" json:"title"`
	Status             TaskStatus `yaml:"status" json:"status"`
	AssigneeID         *string    `yaml:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	ProgressPercentage int        `yaml:"progress_percentage" json:"progress_percentage"`
	PauseReason        *string    `yaml:"pause_reason,omitempty" json:"pause_reason,omitempty"`
	PauseNote          *string    `yaml:"pause_note,omitempty" json:"pause_note,omitempty"`
	PausedAt           *time.Time `yaml:"paused_at,omitempty" json:"paused_at,omitempty"`
	BlockerReason      *string    `yaml:"blocker_reason,omitempty" json:"blocker_reason,omitempty"`
	ActualStartDate    *time.Time `yaml:"actual_start_date,omitempty" json:"actual_start_date,omitempty"`
	ActualEndDate      *time.Time `yaml:"actual_end_date,omitempty" json:"actual_end_date,omitempty"`
	ClosedAt           *time.Time `yaml:"closed_at,omitempty" json:"closed_at,omitempty"`
	Dependencies       []string   `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Collaborators      []string   `yaml:"collaborators,omitempty" json:"collaborators,omitempty"`
	Tags               []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
	CreatedBy          string     `yaml:"created_by" json:"created_by"`
	Created            time.Time  `yaml:"created" json:"created"`
	Updated            time.Time  `yaml:"updated" json:"updated"`
}

// Assignee returns the assignee id, or "" when the task is unassigned.
func (t *Task) Assignee() string {
	if t.AssigneeID == nil {
		return ""
	}
	return *t.AssigneeID
}

// IsOwnedBy reports whether the task is assigned to actorID.
func (t *Task) IsOwnedBy(actorID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == actorID
}

// CanReportProgress reports whether actorID is the assignee or a collaborator.
func (t *Task) CanReportProgress(actorID string) bool {
	if t.IsOwnedBy(actorID) {
		return true
	}
	for _, c := range t.Collaborators {
		if c == actorID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.AssigneeID = clonePtr(t.AssigneeID)
	c.PauseReason = clonePtr(t.PauseReason)
	c.PauseNote = clonePtr(t.PauseNote)
	c.PausedAt = clonePtr(t.PausedAt)
	c.BlockerReason = clonePtr(t.BlockerReason)
	c.ActualStartDate = clonePtr(t.ActualStartDate)
	c.ActualEndDate = clonePtr(t.ActualEndDate)
	c.ClosedAt = clonePtr(t.ClosedAt)
	c.Dependencies = cloneSlice(t.Dependencies)
	c.Collaborators = cloneSlice(t.Collaborators)
	c.Tags = cloneSlice(t.Tags)
	return &c
}

// NewTask carries the caller-supplied fields for task creation.
type NewTask struct {
	ID            string
	Title         string
	AssigneeID    string
	Dependencies  []string
	Collaborators []string
	Tags          []string
}

// TransitionPayload carries the optional fields that accompany a status change.
type TransitionPayload struct {
	PauseReason   string `json:"pause_reason,omitempty"`
	PauseNote     string `json:"pause_note,omitempty"`
	BlockerReason string `json:"blocker_reason,omitempty"`
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
