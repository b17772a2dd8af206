package channel

import (
	"context"

	"github.com/activeobjects-uk/nanoclaw/internal/adapters/linear"
)

// assignedPageSize caps how many assigned issues one pass looks at.
const assignedPageSize = 50

// LinearTracker adapts the Linear GraphQL client to Tracker.
type LinearTracker struct {
	client *linear.Client
}

// NewLinearTracker wraps client.
func NewLinearTracker(client *linear.Client) *LinearTracker {
	return &LinearTracker{client: client}
}

func (t *LinearTracker) Viewer(ctx context.Context) (User, error) {
	u, err := t.client.Viewer(ctx)
	if err != nil {
		return User{}, err
	}
	return toUser(u), nil
}

func (t *LinearTracker) AssignedIssues(ctx context.Context, userID string) ([]IssueSnapshot, error) {
	issues, err := t.client.AssignedIssues(ctx, userID, assignedPageSize)
	if err != nil {
		return nil, err
	}
	out := make([]IssueSnapshot, 0, len(issues))
	for _, issue := range issues {
		out = append(out, toSnapshot(issue))
	}
	return out, nil
}

func (t *LinearTracker) IssueComments(ctx context.Context, issueID string, first int) ([]Comment, error) {
	comments, err := t.client.IssueComments(ctx, issueID, first)
	if err != nil {
		return nil, err
	}
	out := make([]Comment, 0, len(comments))
	for _, c := range comments {
		comment := Comment{
			ID:        c.ID,
			Body:      c.Body,
			CreatedAt: c.CreatedAt,
		}
		if c.User != nil {
			u := toUser(c.User)
			comment.Author = &u
		}
		out = append(out, comment)
	}
	return out, nil
}

func (t *LinearTracker) ResolveIssue(ctx context.Context, identifier string) (IssueSnapshot, error) {
	issue, err := t.client.ResolveIssue(ctx, identifier, 0)
	if err != nil {
		return IssueSnapshot{}, err
	}
	return toSnapshot(issue), nil
}

// PostComment posts a comment. Replies are attached to the top of the
// thread because Linear rejects nested replies.
func (t *LinearTracker) PostComment(ctx context.Context, issueID, body, parentID string) (string, error) {
	if parentID != "" {
		parentID = t.client.TopLevelCommentID(ctx, parentID)
	}
	comment, err := t.client.CreateComment(ctx, linear.CommentCreateInput{
		IssueID:  issueID,
		Body:     body,
		ParentID: parentID,
	})
	if err != nil {
		return "", err
	}
	return comment.ID, nil
}

func toUser(u *linear.User) User {
	return User{ID: u.ID, Name: u.Name, DisplayName: u.DisplayName}
}

func toSnapshot(issue *linear.Issue) IssueSnapshot {
	return IssueSnapshot{
		ID:            issue.ID,
		Identifier:    issue.Identifier,
		Title:         issue.Title,
		Description:   issue.Description,
		Status:        issue.State.Name,
		PriorityLabel: issue.PriorityLabel,
		Labels:        issue.LabelNames(),
		URL:           issue.URL,
		UpdatedAt:     issue.UpdatedAt,
		CreatorID:     issue.CreatorID(),
	}
}
