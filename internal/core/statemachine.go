package core

import (
	"strings"
	"time"

	"github.com/valter-silva-au/taskledger/pkg/models"
)

// allowedTransitions is the status transition table used by UpdateStatus.
// IN_PROGRESS -> UNCLAIMED is absent; only UnclaimTask releases a started
// task.
var allowedTransitions = map[models.TaskStatus]map[models.TaskStatus]struct{}{
	models.StatusUnclaimed: {
		models.StatusClaimed: {},
	},
	models.StatusClaimed: {
		models.StatusInProgress: {},
		models.StatusUnclaimed:  {},
	},
	models.StatusInProgress: {
		models.StatusDone:    {},
		models.StatusPaused:  {},
		models.StatusBlocked: {},
	},
	models.StatusPaused: {
		models.StatusInProgress: {},
	},
	models.StatusBlocked: {
		models.StatusInProgress: {},
	},
	models.StatusDone: {},
}

// IsValidTransition reports whether the table allows moving from -> to.
func IsValidTransition(from, to models.TaskStatus) bool {
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// AllowedTransitions returns the targets reachable from a status, in
// lifecycle order.
func AllowedTransitions(from models.TaskStatus) []models.TaskStatus {
	var out []models.TaskStatus
	for _, s := range models.AllStatuses {
		if IsValidTransition(from, s) {
			out = append(out, s)
		}
	}
	return out
}

// DecideTransition decides whether current may move to the requested status
// and returns the field changes that move implies. It performs no I/O and
// reads the clock only through now.
func DecideTransition(current models.Task, to models.TaskStatus, payload models.TransitionPayload, now time.Time) (models.TaskChanges, error) {
	from := current.Status
	if !IsValidTransition(from, to) {
		return models.TaskChanges{}, &TransitionError{From: from, To: to}
	}

	changes := models.TaskChanges{
		Status:  &to,
		Updated: now,
	}

	if from == models.StatusPaused || from == models.StatusBlocked {
		clearHoldFields(&changes)
	}

	switch to {
	case models.StatusPaused:
		reason := strings.TrimSpace(payload.PauseReason)
		if reason == "" {
			return models.TaskChanges{}, ErrPauseReasonRequired
		}
		changes.PauseReason = models.Set(reason)
		if note := strings.TrimSpace(payload.PauseNote); note != "" {
			changes.PauseNote = models.Set(note)
		} else {
			changes.PauseNote = models.Clear[string]()
		}
		changes.PausedAt = models.Set(now)
	case models.StatusBlocked:
		if reason := strings.TrimSpace(payload.BlockerReason); reason != "" {
			changes.BlockerReason = models.Set(reason)
		} else {
			changes.BlockerReason = models.Clear[string]()
		}
	case models.StatusInProgress:
		markStarted(current, &changes, now)
	case models.StatusDone:
		markDone(&changes, now)
	case models.StatusUnclaimed:
		changes.AssigneeID = models.Clear[string]()
		changes.ProgressPercentage = intPtr(0)
	}

	return changes, nil
}

// decideProgress derives the changes for a progress report of pct percent.
// 100 completes the task, any positive report on a CLAIMED task starts it,
// and everything else only moves the percentage.
func decideProgress(current models.Task, pct int, now time.Time) models.TaskChanges {
	changes := models.TaskChanges{
		ProgressPercentage: intPtr(pct),
		Updated:            now,
	}

	switch {
	case pct == 100:
		done := models.StatusDone
		changes.Status = &done
		if current.Status == models.StatusPaused || current.Status == models.StatusBlocked {
			clearHoldFields(&changes)
		}
		markDone(&changes, now)
	case pct > 0 && current.Status == models.StatusClaimed:
		started := models.StatusInProgress
		changes.Status = &started
		markStarted(current, &changes, now)
	}

	return changes
}

func clearHoldFields(c *models.TaskChanges) {
	c.PauseReason = models.Clear[string]()
	c.PauseNote = models.Clear[string]()
	c.PausedAt = models.Clear[time.Time]()
	c.BlockerReason = models.Clear[string]()
}

func markStarted(current models.Task, c *models.TaskChanges, now time.Time) {
	if current.ActualStartDate == nil {
		c.ActualStartDate = models.Set(now)
	}
}

func markDone(c *models.TaskChanges, now time.Time) {
	c.ProgressPercentage = intPtr(100)
	c.ActualEndDate = models.Set(now)
	c.ClosedAt = models.Set(now)
}

func intPtr(v int) *int { return &v }
