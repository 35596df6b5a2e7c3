package core

import (
	"sort"
	"time"

	"github.com/valter-silva-au/taskledger/pkg/models"
)

// newProgressEntry builds the ledger entry for a progress report moving a task
// from previous to pct percent.
func newProgressEntry(id, taskID, actorID string, previous, pct int, notes string, now time.Time) models.ProgressLogEntry {
	return models.ProgressLogEntry{
		ID:                 id,
		TaskID:             taskID,
		ActorID:            actorID,
		ProgressPercentage: pct,
		ProgressDelta:      pct - previous,
		ReportType:         models.ReportTypeFor(pct),
		Notes:              notes,
		ReportedAt:         now,
	}
}

// SortNewestFirst orders ledger entries by ReportedAt, newest first. Entries
// reported at the same instant keep their relative append order reversed, so
// the last one written comes first.
func SortNewestFirst(entries []models.ProgressLogEntry) {
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ReportedAt.After(entries[j].ReportedAt)
	})
}
