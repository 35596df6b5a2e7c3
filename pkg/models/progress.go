package models

import "time"

// ReportType classifies a progress report.
type ReportType string

const (
	ReportProgress ReportType = "PROGRESS"
	ReportComplete ReportType = "COMPLETE"
)

// ReportTypeFor returns COMPLETE for 100% and PROGRESS otherwise.
func ReportTypeFor(percentage int) ReportType {
	if percentage == 100 {
		return ReportComplete
	}
	return ReportProgress
}

// ProgressLogEntry is an immutable record of one progress report: actor X
// reported task T at Y% at time Z.
type ProgressLogEntry struct {
	ID                 string     `yaml:"id" json:"id"`
	TaskID             string     `yaml:"task_id" json:"task_id"`
	ActorID            string     `yaml:"actor_id" json:"actor_id"`
	ProgressPercentage int        `yaml:"progress_percentage" json:"progress_percentage"`
	ProgressDelta      int        `yaml:"progress_delta" json:"progress_delta"`
	ReportType         ReportType `yaml:"report_type" json:"report_type"`
	Notes              string     `yaml:"notes,omitempty" json:"notes,omitempty"`
	ReportedAt         time.Time  `yaml:"reported_at" json:"reported_at"`
}
