package channel

import (
	"fmt"
	"strings"
)

// formatIssue renders the message body for an issue delivery.
func formatIssue(assistant string, issue IssueSnapshot, trigger Trigger) string {
	heading := "Issue Assigned"
	if trigger != TriggerAssigned {
		heading = "Issue Updated"
	}

	status := issue.Status
	if status == "" {
		status = "Unknown"
	}
	priority := issue.PriorityLabel
	if priority == "" {
		priority = "None"
	}
	description := issue.Description
	if description == "" {
		description = "(no description)"
	}

	lines := []string{
		fmt.Sprintf("@%s [Linear %s]", assistant, heading),
		fmt.Sprintf("Issue: %s — %s", issue.Identifier, issue.Title),
		"Status: " + status,
		"Priority: " + priority,
	}
	if len(issue.Labels) > 0 {
		lines = append(lines, "Labels: "+strings.Join(issue.Labels, ", "))
	}
	lines = append(lines, "URL: "+issue.URL, "", description)

	return strings.Join(lines, "\n")
}

// formatComment renders the message body for a comment delivery.
func formatComment(assistant, identifier string, c Comment) string {
	return fmt.Sprintf("@%s [New comment on %s (commentId: %s)]\n\n%s", assistant, identifier, c.ID, c.Body)
}
