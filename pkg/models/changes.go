package models

import "time"

// Change describes an update to one optional task field. The zero value
// leaves the field untouched.
type Change[T any] struct {
	touched bool
	value   *T
}

// Set returns a Change that stores v.
func Set[T any](v T) Change[T] {
	return Change[T]{touched: true, value: &v}
}

// Clear returns a Change that removes the field's value.
func Clear[T any]() Change[T] {
	return Change[T]{touched: true}
}

// Touched reports whether the change modifies the field at all.
func (c Change[T]) Touched() bool { return c.touched }

// Value returns the new value and whether one is present. A touched change
// without a value clears the field.
func (c Change[T]) Value() (T, bool) {
	if c.value == nil {
		var zero T
		return zero, false
	}
	return *c.value, true
}

// Ptr returns the new value as a pointer, nil when the field is cleared.
func (c Change[T]) Ptr() *T {
	if c.value == nil {
		return nil
	}
	v := *c.value
	return &v
}

// apply writes the change into dst when the change is touched.
func (c Change[T]) apply(dst **T) {
	if !c.touched {
		return
	}
	*dst = c.Ptr()
}

// TaskChanges is the set of field mutations produced by a lifecycle decision.
// Nil pointers and untouched changes leave the stored value as is.
type TaskChanges struct {
	Status             *TaskStatus
	ProgressPercentage *int
	AssigneeID         Change[string]
	PauseReason        Change[string]
	PauseNote          Change[string]
	PausedAt           Change[time.Time]
	BlockerReason      Change[string]
	ActualStartDate    Change[time.Time]
	ActualEndDate      Change[time.Time]
	ClosedAt           Change[time.Time]
	Updated            time.Time
}

// IsEmpty reports whether the changes modify nothing besides Updated.
func (c TaskChanges) IsEmpty() bool {
	return c.Status == nil && c.ProgressPercentage == nil &&
		!c.AssigneeID.Touched() && !c.PauseReason.Touched() && !c.PauseNote.Touched() &&
		!c.PausedAt.Touched() && !c.BlockerReason.Touched() && !c.ActualStartDate.Touched() &&
		!c.ActualEndDate.Touched() && !c.ClosedAt.Touched()
}

// ApplyTo mutates t in place. ActualStartDate is only written when the task
// has none yet, so the first start always wins.
func (c TaskChanges) ApplyTo(t *Task) {
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.ProgressPercentage != nil {
		t.ProgressPercentage = *c.ProgressPercentage
	}
	c.AssigneeID.apply(&t.AssigneeID)
	c.PauseReason.apply(&t.PauseReason)
	c.PauseNote.apply(&t.PauseNote)
	c.PausedAt.apply(&t.PausedAt)
	c.BlockerReason.apply(&t.BlockerReason)
	if t.ActualStartDate == nil {
		c.ActualStartDate.apply(&t.ActualStartDate)
	}
	c.ActualEndDate.apply(&t.ActualEndDate)
	c.ClosedAt.apply(&t.ClosedAt)
	if !c.Updated.IsZero() {
		t.Updated = c.Updated
	}
}

// TaskPredicate is the compare half of a conditional update. A row matches
// when its id equals ID, its status is one of Statuses (any status when
// empty) and, if AssigneeID is set, it is assigned to that actor.
type TaskPredicate struct {
	ID         string
	Statuses   []TaskStatus
	AssigneeID *string
}

// Matches reports whether t satisfies the predicate.
func (p TaskPredicate) Matches(t *Task) bool {
	if t == nil || t.ID != p.ID {
		return false
	}
	if len(p.Statuses) > 0 {
		found := false
		for _, s := range p.Statuses {
			if t.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.AssigneeID != nil && !t.IsOwnedBy(*p.AssigneeID) {
		return false
	}
	return true
}
