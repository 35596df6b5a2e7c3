package models

import "testing"

func TestTaskStatus(t *testing.T) {
	for _, s := range AllStatuses {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
		if s.IsTerminal() != (s == StatusDone) {
			t.Errorf("%s IsTerminal = %v", s, s.IsTerminal())
		}
	}
	if TaskStatus("REVIEW").IsValid() || TaskStatus("in_progress").IsValid() {
		t.Error("unknown and lowercase statuses should be invalid")
	}
}

func TestTask_Ownership(t *testing.T) {
	alice := "alice"
	task := &Task{AssigneeID: &alice, Collaborators: []string{"carol"}}

	if task.Assignee() != "alice" || !task.IsOwnedBy("alice") || task.IsOwnedBy("bob") {
		t.Error("ownership checks disagree with the assignee")
	}
	for actor, want := range map[string]bool{"alice": true, "carol": true, "bob": false} {
		if got := task.CanReportProgress(actor); got != want {
			t.Errorf("CanReportProgress(%s) = %v, want %v", actor, got, want)
		}
	}
	if (&Task{}).Assignee() != "" {
		t.Error("unassigned task should report an empty assignee")
	}
}

func TestTask_CloneIsDeep(t *testing.T) {
	alice := "alice"
	orig := &Task{ID: "T-1", AssigneeID: &alice, Tags: []string{"db"}}
	c := orig.Clone()

	*c.AssigneeID = "bob"
	c.Tags[0] = "api"

	if *orig.AssigneeID != "alice" || orig.Tags[0] != "db" {
		t.Errorf("clone shares memory with the original: %+v", orig)
	}
}

func TestReportTypeFor(t *testing.T) {
	if ReportTypeFor(100) != ReportComplete || ReportTypeFor(99) != ReportProgress || ReportTypeFor(0) != ReportProgress {
		t.Error("only 100% reports are COMPLETE")
	}
}
