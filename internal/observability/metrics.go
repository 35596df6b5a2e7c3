package observability

import (
	"fmt"
	"time"
)

// Metrics holds lifecycle counters derived from the event log.
type Metrics struct {
	TasksCreated    int            `json:"tasks_created"`
	TasksClaimed    int            `json:"tasks_claimed"`
	TasksUnclaimed  int            `json:"tasks_unclaimed"`
	TasksCompleted  int            `json:"tasks_completed"`
	ProgressReports int            `json:"progress_reports"`
	TransitionsTo   map[string]int `json:"transitions_to"`
	ReportsByActor  map[string]int `json:"reports_by_actor"`
	EventCount      int            `json:"event_count"`
	OldestEvent     *time.Time     `json:"oldest_event,omitempty"`
	NewestEvent     *time.Time     `json:"newest_event,omitempty"`
}

// MetricsCalculator derives metrics from the event log.
type MetricsCalculator interface {
	Calculate(since time.Time) (*Metrics, error)
}

type metricsCalculator struct {
	eventLog EventLog
}

// NewMetricsCalculator creates a MetricsCalculator that reads from eventLog.
func NewMetricsCalculator(eventLog EventLog) MetricsCalculator {
	return &metricsCalculator{eventLog: eventLog}
}

// Calculate replays every event since the given time.
func (mc *metricsCalculator) Calculate(since time.Time) (*Metrics, error) {
	events, err := mc.eventLog.Read(EventFilter{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("reading events for metrics: %w", err)
	}

	m := &Metrics{
		TransitionsTo:  make(map[string]int),
		ReportsByActor: make(map[string]int),
		EventCount:     len(events),
	}

	for i, event := range events {
		t := event.Time
		if i == 0 {
			m.OldestEvent = &t
		}
		m.NewestEvent = &t

		switch event.Type {
		case EventTaskCreated:
			m.TasksCreated++
		case EventTaskClaimed:
			m.TasksClaimed++
		case EventTaskUnclaimed:
			m.TasksUnclaimed++
		case EventTaskCompleted:
			m.TasksCompleted++
		case EventTaskStatusChanged:
			if to, ok := event.Data["to"].(string); ok {
				m.TransitionsTo[to]++
			}
		case EventTaskProgressReported:
			m.ProgressReports++
			if event.ActorID != "" {
				m.ReportsByActor[event.ActorID]++
			}
		}
	}

	return m, nil
}
