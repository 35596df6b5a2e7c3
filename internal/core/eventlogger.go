package core

// EventLogger is the subset of the observability event log that the lifecycle
// service needs.
type EventLogger interface {
	LogEvent(eventType string, data map[string]any) error
}

// Lifecycle event types.
const (
	EventTaskCreated          = "task.created"
	EventTaskClaimed          = "task.claimed"
	EventTaskUnclaimed        = "task.unclaimed"
	EventTaskStatusChanged    = "task.status_changed"
	EventTaskProgressReported = "task.progress_reported"
	EventTaskCompleted        = "task.completed"
)
