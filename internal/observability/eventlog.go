package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Event is one line of the lifecycle audit log.
type Event struct {
	Time    time.Time      `json:"time"`
	Type    string         `json:"type"` // e.g. "task.claimed", "task.status_changed"
	TaskID  string         `json:"task_id,omitempty"`
	ActorID string         `json:"actor_id,omitempty"`
	Message string         `json:"msg,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// EventFilter specifies criteria for reading events. Zero fields match
// everything.
type EventFilter struct {
	Since  *time.Time
	Until  *time.Time
	Type   string
	TaskID string
}

// EventLog defines the interface for writing and reading events.
type EventLog interface {
	Write(event Event) error
	Read(filter EventFilter) ([]Event, error)
	Close() error
}

// jsonlEventLog implements EventLog using an append-only JSONL file.
type jsonlEventLog struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewJSONLEventLog opens (or creates) the JSONL event log at path.
func NewJSONLEventLog(path string) (EventLog, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	return &jsonlEventLog{
		path: path,
		file: f,
	}, nil
}

// Write appends one JSON-encoded event and a newline.
func (l *jsonlEventLog) Write(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	return nil
}

// Read scans the whole log and returns the events matching filter in the
// order they were written. Malformed lines are skipped.
func (l *jsonlEventLog) Read(filter EventFilter) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening event log for reading: %w", err)
	}
	defer func() { _ = f.Close() }()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue
		}
		if filter.matches(event) {
			events = append(events, event)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning event log: %w", err)
	}

	return events, nil
}

// Close closes the underlying log file.
func (l *jsonlEventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("closing event log: %w", err)
	}
	return nil
}

func (f EventFilter) matches(event Event) bool {
	if f.Since != nil && event.Time.Before(*f.Since) {
		return false
	}
	if f.Until != nil && event.Time.After(*f.Until) {
		return false
	}
	if f.Type != "" && event.Type != f.Type {
		return false
	}
	if f.TaskID != "" && event.TaskID != f.TaskID {
		return false
	}
	return true
}

// Recorder turns lifecycle notifications into events. It satisfies the
// lifecycle service's EventLogger interface.
type Recorder struct {
	log EventLog
	now func() time.Time
}

// NewRecorder creates a Recorder writing to log.
func NewRecorder(log EventLog) *Recorder {
	return &Recorder{log: log, now: func() time.Time { return time.Now().UTC() }}
}

// LogEvent lifts task_id and actor_id out of data into the event's own
// fields and writes it.
func (r *Recorder) LogEvent(eventType string, data map[string]any) error {
	event := Event{
		Time:    r.now(),
		Type:    eventType,
		Message: eventType,
	}
	rest := make(map[string]any, len(data))
	for k, v := range data {
		switch k {
		case "task_id":
			event.TaskID, _ = v.(string)
		case "actor_id":
			event.ActorID, _ = v.(string)
		default:
			rest[k] = v
		}
	}
	if len(rest) > 0 {
		event.Data = rest
	}
	return r.log.Write(event)
}

// Lifecycle event types as written by the lifecycle service.
const (
	EventTaskCreated          = "task.created"
	EventTaskClaimed          = "task.claimed"
	EventTaskUnclaimed        = "task.unclaimed"
	EventTaskStatusChanged    = "task.status_changed"
	EventTaskProgressReported = "task.progress_reported"
	EventTaskCompleted        = "task.completed"
)
