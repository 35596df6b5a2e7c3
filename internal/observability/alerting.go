package observability

import (
	"fmt"
	"sort"
	"time"
)

// AlertSeverity represents the urgency of an alert.
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// Alert represents a triggered alert condition.
type Alert struct {
	ID          string        `json:"id"`
	Condition   string        `json:"condition"`
	Severity    AlertSeverity `json:"severity"`
	TaskID      string        `json:"task_id,omitempty"`
	Message     string        `json:"message"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertThresholds configures when alerts fire. A zero threshold disables
// its check.
type AlertThresholds struct {
	BlockedHours int
	PausedDays   int
	StaleDays    int
	MaxUnclaimed int
}

// DefaultAlertThresholds returns the thresholds used when none are configured.
func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		BlockedHours: 24,
		PausedDays:   7,
		StaleDays:    3,
		MaxUnclaimed: 10,
	}
}

// AlertEngine evaluates alert conditions against the event log.
type AlertEngine interface {
	Evaluate() ([]Alert, error)
}

type alertEngine struct {
	eventLog   EventLog
	thresholds AlertThresholds
	now        func() time.Time
}

// NewAlertEngine creates an AlertEngine with the given EventLog and thresholds.
func NewAlertEngine(eventLog EventLog, thresholds AlertThresholds) AlertEngine {
	return &alertEngine{
		eventLog:   eventLog,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// replayedTask is the state of one task reconstructed from its events.
type replayedTask struct {
	status       string
	since        time.Time // when status was entered
	lastActivity time.Time
}

// replay rebuilds each task's latest status from lifecycle events.
func replay(events []Event) map[string]*replayedTask {
	tasks := make(map[string]*replayedTask)
	enter := func(id, status string, at time.Time) {
		t := tasks[id]
		if t == nil {
			t = &replayedTask{}
			tasks[id] = t
		}
		if t.status != status {
			t.status = status
			t.since = at
		}
		if at.After(t.lastActivity) {
			t.lastActivity = at
		}
	}

	for _, e := range events {
		if e.TaskID == "" {
			continue
		}
		switch e.Type {
		case EventTaskCreated:
			status, _ := e.Data["status"].(string)
			if status == "" {
				status = "UNCLAIMED"
			}
			enter(e.TaskID, status, e.Time)
		case EventTaskClaimed:
			enter(e.TaskID, "CLAIMED", e.Time)
		case EventTaskUnclaimed:
			enter(e.TaskID, "UNCLAIMED", e.Time)
		case EventTaskStatusChanged:
			if to, ok := e.Data["to"].(string); ok {
				enter(e.TaskID, to, e.Time)
			}
		case EventTaskCompleted:
			enter(e.TaskID, "DONE", e.Time)
		case EventTaskProgressReported:
			if t := tasks[e.TaskID]; t != nil {
				if t.status == "CLAIMED" {
					t.status = "IN_PROGRESS"
					t.since = e.Time
				}
				if e.Time.After(t.lastActivity) {
					t.lastActivity = e.Time
				}
			}
		}
	}
	return tasks
}

// Evaluate replays the log and checks every enabled condition. Alerts are
// returned sorted by ID.
func (ae *alertEngine) Evaluate() ([]Alert, error) {
	events, err := ae.eventLog.Read(EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("reading events for alerts: %w", err)
	}

	now := ae.now()
	tasks := replay(events)
	th := ae.thresholds

	var alerts []Alert
	unclaimed := 0
	for id, t := range tasks {
		switch t.status {
		case "BLOCKED":
			if th.BlockedHours > 0 && now.Sub(t.since) > time.Duration(th.BlockedHours)*time.Hour {
				alerts = append(alerts, Alert{
					ID:          "blocked-" + id,
					Condition:   "task_blocked_too_long",
					Severity:    SeverityHigh,
					TaskID:      id,
					Message:     fmt.Sprintf("task %s has been blocked for more than %d hours", id, th.BlockedHours),
					TriggeredAt: now,
				})
			}
		case "PAUSED":
			if th.PausedDays > 0 && now.Sub(t.since) > days(th.PausedDays) {
				alerts = append(alerts, Alert{
					ID:          "paused-" + id,
					Condition:   "task_paused_too_long",
					Severity:    SeverityMedium,
					TaskID:      id,
					Message:     fmt.Sprintf("task %s has been paused for more than %d days", id, th.PausedDays),
					TriggeredAt: now,
				})
			}
		case "CLAIMED", "IN_PROGRESS":
			if th.StaleDays > 0 && now.Sub(t.lastActivity) > days(th.StaleDays) {
				alerts = append(alerts, Alert{
					ID:          "stale-" + id,
					Condition:   "task_stale",
					Severity:    SeverityMedium,
					TaskID:      id,
					Message:     fmt.Sprintf("task %s has had no progress for more than %d days", id, th.StaleDays),
					TriggeredAt: now,
				})
			}
		case "UNCLAIMED":
			unclaimed++
		}
	}

	if th.MaxUnclaimed > 0 && unclaimed > th.MaxUnclaimed {
		alerts = append(alerts, Alert{
			ID:          "unclaimed-backlog",
			Condition:   "unclaimed_backlog_too_large",
			Severity:    SeverityLow,
			Message:     fmt.Sprintf("%d tasks are unclaimed, exceeding the maximum of %d", unclaimed, th.MaxUnclaimed),
			TriggeredAt: now,
		})
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts, nil
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}
