package linear

import (
	"strings"
	"testing"
)

func TestPriorityName(t *testing.T) {
	tests := []struct {
		priority int
		want     string
	}{
		{PriorityNone, "No priority"},
		{PriorityUrgent, "Urgent"},
		{PriorityHigh, "High"},
		{PriorityMedium, "Medium"},
		{PriorityLow, "Low"},
		{99, "No priority"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := PriorityName(tt.priority); got != tt.want {
				t.Errorf("PriorityName(%d) = %s, want %s", tt.priority, got, tt.want)
			}
		})
	}
}

func TestIssueCreatorID(t *testing.T) {
	issue := &Issue{}
	if issue.CreatorID() != "" {
		t.Error("expected empty creator id for integration-created issue")
	}
	issue.Creator = &User{ID: "u1"}
	if issue.CreatorID() != "u1" {
		t.Errorf("CreatorID() = %s, want u1", issue.CreatorID())
	}
}

func TestIssueUpdateInputFields(t *testing.T) {
	none := PriorityNone
	fields, names := IssueUpdateInput{
		Title:      "New",
		Priority:   &none,
		AssigneeID: "u2",
	}.Fields()

	if got := strings.Join(names, ","); got != "priority,title,assigneeId" {
		t.Errorf("names = %s, want priority,title,assigneeId", got)
	}
	if fields["priority"] != 0 {
		t.Errorf("priority = %v, want 0 (explicit no-priority is still an update)", fields["priority"])
	}
	if _, ok := fields["description"]; ok {
		t.Error("empty description should not be included")
	}
}

func TestClosedStateTypes(t *testing.T) {
	if len(closedStateTypes) != 2 {
		t.Fatalf("len(closedStateTypes) = %d, want 2", len(closedStateTypes))
	}
	for _, st := range closedStateTypes {
		if st != StateTypeCompleted && st != StateTypeCanceled {
			t.Errorf("unexpected closed state type %s", st)
		}
	}
}
