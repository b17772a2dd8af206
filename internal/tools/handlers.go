package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/activeobjects-uk/nanoclaw/internal/adapters/linear"
	"github.com/activeobjects-uk/nanoclaw/internal/channel"
)

const (
	getIssueComments   = 10
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// IssueRef identifies an issue by its human identifier.
type IssueRef struct {
	Identifier string `json:"identifier" jsonschema:"Issue identifier (e.g. ENG-123)"`
}

// UpdateIssueInput is the linear_update_issue argument set.
type UpdateIssueInput struct {
	Identifier  string `json:"identifier" jsonschema:"Issue identifier (e.g. ENG-123)"`
	StateID     string `json:"stateId,omitempty" jsonschema:"New workflow state ID (use linear_list_states to find IDs)"`
	Priority    *int   `json:"priority,omitempty" jsonschema:"Priority: 0=None 1=Urgent 2=High 3=Medium 4=Low"`
	Title       string `json:"title,omitempty" jsonschema:"New title"`
	Description string `json:"description,omitempty" jsonschema:"New description (markdown)"`
	AssigneeID  string `json:"assigneeId,omitempty" jsonschema:"New assignee user ID"`
}

// AddCommentInput is the linear_add_comment argument set.
type AddCommentInput struct {
	Identifier string `json:"identifier" jsonschema:"Issue identifier (e.g. ENG-123)"`
	Body       string `json:"body" jsonschema:"Comment body (markdown supported)"`
	ParentID   string `json:"parentId,omitempty" jsonschema:"Parent comment ID to reply to (creates a threaded reply)"`
}

// SearchIssuesInput is the linear_search_issues argument set.
type SearchIssuesInput struct {
	Query string `json:"query" jsonschema:"Search text (matches title, description and identifier)"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results (default 10, max 50)"`
}

// CreateIssueInput is the linear_create_issue argument set.
type CreateIssueInput struct {
	Title       string `json:"title" jsonschema:"Issue title"`
	TeamID      string `json:"teamId" jsonschema:"Team ID (use linear_list_teams to find)"`
	Description string `json:"description,omitempty" jsonschema:"Issue description (markdown)"`
	Priority    *int   `json:"priority,omitempty" jsonschema:"Priority: 0=None 1=Urgent 2=High 3=Medium 4=Low"`
	StateID     string `json:"stateId,omitempty" jsonschema:"Initial workflow state ID"`
	AssigneeID  string `json:"assigneeId,omitempty" jsonschema:"Assignee user ID"`
}

// ListStatesInput is the linear_list_states argument set.
type ListStatesInput struct {
	TeamID string `json:"teamId" jsonschema:"Team ID"`
}

// UploadFileInput is the linear_upload_file argument set.
type UploadFileInput struct {
	Identifier string `json:"identifier" jsonschema:"Issue identifier (e.g. ENG-123)"`
	FilePath   string `json:"filePath" jsonschema:"File path relative to the workspace directory (e.g. planning.md) or absolute"`
	Title      string `json:"title,omitempty" jsonschema:"Attachment title (defaults to filename)"`
}

type assigneeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type commentDetail struct {
	ID        string  `json:"id"`
	ParentID  *string `json:"parentId"`
	Body      string  `json:"body"`
	Author    string  `json:"author"`
	CreatedAt string  `json:"createdAt"`
}

type issueDetail struct {
	Identifier    string          `json:"identifier"`
	Title         string          `json:"title"`
	Description   *string         `json:"description"`
	Status        string          `json:"status"`
	Priority      int             `json:"priority"`
	PriorityLabel string          `json:"priorityLabel"`
	Assignee      *assigneeRef    `json:"assignee"`
	Labels        []string        `json:"labels"`
	URL           string          `json:"url"`
	CreatedAt     string          `json:"createdAt"`
	UpdatedAt     string          `json:"updatedAt"`
	Comments      []commentDetail `json:"comments"`
}

type issueSummary struct {
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	Assignee   string `json:"assignee"`
	URL        string `json:"url"`
}

// resolve looks up an issue, turning a miss into the tool's not-found result.
func (s *Server) resolve(ctx context.Context, identifier string, comments int) (*linear.Issue, *mcp.CallToolResult, error) {
	issue, err := s.api.ResolveIssue(ctx, identifier, comments)
	if errors.Is(err, linear.ErrNotFound) {
		return nil, errorResult("Issue %q not found.", identifier), nil
	}
	if err != nil {
		return nil, nil, err
	}
	return issue, nil, nil
}

func statusName(issue *linear.Issue) string {
	if issue.State.Name == "" {
		return "Unknown"
	}
	return issue.State.Name
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// GetIssue handles linear_get_issue.
func (s *Server) GetIssue(ctx context.Context, _ *mcp.CallToolRequest, in IssueRef) (*mcp.CallToolResult, any, error) {
	issue, miss, err := s.resolve(ctx, in.Identifier, getIssueComments)
	if err != nil {
		return errorResult("Error getting issue: %v", err), nil, nil
	}
	if miss != nil {
		return miss, nil, nil
	}

	detail := issueDetail{
		Identifier:    issue.Identifier,
		Title:         issue.Title,
		Description:   optional(issue.Description),
		Status:        statusName(issue),
		Priority:      issue.Priority,
		PriorityLabel: issue.PriorityLabel,
		Labels:        issue.LabelNames(),
		URL:           issue.URL,
		CreatedAt:     channel.FormatTimestamp(issue.CreatedAt),
		UpdatedAt:     channel.FormatTimestamp(issue.UpdatedAt),
		Comments:      make([]commentDetail, 0, len(issue.Comments)),
	}
	if issue.Assignee != nil {
		detail.Assignee = &assigneeRef{ID: issue.Assignee.ID, Name: issue.Assignee.DisplayOrName()}
	}
	for i := range issue.Comments {
		c := &issue.Comments[i]
		author := "Unknown"
		if c.User != nil && c.User.DisplayOrName() != "" {
			author = c.User.DisplayOrName()
		}
		detail.Comments = append(detail.Comments, commentDetail{
			ID:        c.ID,
			ParentID:  optional(c.ParentID()),
			Body:      c.Body,
			Author:    author,
			CreatedAt: channel.FormatTimestamp(c.CreatedAt),
		})
	}

	res, err := jsonResult(detail)
	if err != nil {
		return errorResult("Error getting issue: %v", err), nil, nil
	}
	return res, nil, nil
}

// UpdateIssue handles linear_update_issue.
func (s *Server) UpdateIssue(ctx context.Context, _ *mcp.CallToolRequest, in UpdateIssueInput) (*mcp.CallToolResult, any, error) {
	issue, miss, err := s.resolve(ctx, in.Identifier, 0)
	if err != nil {
		return errorResult("Error updating issue: %v", err), nil, nil
	}
	if miss != nil {
		return miss, nil, nil
	}

	input := linear.IssueUpdateInput{
		StateID:     in.StateID,
		Priority:    in.Priority,
		Title:       in.Title,
		Description: in.Description,
		AssigneeID:  in.AssigneeID,
	}
	if _, names := input.Fields(); len(names) == 0 {
		return errorResult("No updates provided."), nil, nil
	}

	names, err := s.api.UpdateIssue(ctx, issue.ID, input)
	if err != nil {
		return errorResult("Error updating issue: %v", err), nil, nil
	}
	s.logger.Info("updated issue", "issue", in.Identifier, "fields", names)
	return textResult(fmt.Sprintf("Issue %s updated: %s", in.Identifier, strings.Join(names, ", "))), nil, nil
}

// AddComment handles linear_add_comment. Replies to a reply are attached to
// the thread's top-level comment.
func (s *Server) AddComment(ctx context.Context, _ *mcp.CallToolRequest, in AddCommentInput) (*mcp.CallToolResult, any, error) {
	issue, miss, err := s.resolve(ctx, in.Identifier, 0)
	if err != nil {
		return errorResult("Error adding comment: %v", err), nil, nil
	}
	if miss != nil {
		return miss, nil, nil
	}

	input := linear.CommentCreateInput{IssueID: issue.ID, Body: in.Body}
	if in.ParentID != "" {
		input.ParentID = s.api.TopLevelCommentID(ctx, in.ParentID)
	}

	comment, err := s.api.CreateComment(ctx, input)
	if err != nil {
		return errorResult("Error adding comment: %v", err), nil, nil
	}
	if s.onComment != nil && comment != nil {
		s.onComment(comment.ID)
	}

	suffix := ""
	if in.ParentID != "" {
		suffix = " (threaded reply)"
	}
	return textResult(fmt.Sprintf("Comment added to %s%s.", in.Identifier, suffix)), nil, nil
}

// SearchIssues handles linear_search_issues.
func (s *Server) SearchIssues(ctx context.Context, _ *mcp.CallToolRequest, in SearchIssuesInput) (*mcp.CallToolResult, any, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	issues, err := s.api.SearchIssues(ctx, in.Query, limit)
	if err != nil {
		return errorResult("Error searching issues: %v", err), nil, nil
	}
	if len(issues) == 0 {
		return textResult(fmt.Sprintf("No issues found for %q.", in.Query)), nil, nil
	}

	out := make([]issueSummary, 0, len(issues))
	for _, issue := range issues {
		assignee := "Unassigned"
		if issue.Assignee != nil && issue.Assignee.DisplayOrName() != "" {
			assignee = issue.Assignee.DisplayOrName()
		}
		out = append(out, issueSummary{
			Identifier: issue.Identifier,
			Title:      issue.Title,
			Status:     statusName(issue),
			Priority:   issue.PriorityLabel,
			Assignee:   assignee,
			URL:        issue.URL,
		})
	}

	res, err := jsonResult(out)
	if err != nil {
		return errorResult("Error searching issues: %v", err), nil, nil
	}
	return res, nil, nil
}

// CreateIssue handles linear_create_issue.
func (s *Server) CreateIssue(ctx context.Context, _ *mcp.CallToolRequest, in CreateIssueInput) (*mcp.CallToolResult, any, error) {
	issue, err := s.api.CreateIssue(ctx, linear.IssueCreateInput{
		TeamID:      in.TeamID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		StateID:     in.StateID,
		AssigneeID:  in.AssigneeID,
	})
	if err != nil {
		return errorResult("Error creating issue: %v", err), nil, nil
	}
	if issue == nil {
		return textResult("Issue created."), nil, nil
	}
	s.logger.Info("created issue", "issue", issue.Identifier, "team", in.TeamID)
	return textResult(fmt.Sprintf("Issue created: %s — %s\nURL: %s", issue.Identifier, issue.Title, issue.URL)), nil, nil
}

// ListTeams handles linear_list_teams.
func (s *Server) ListTeams(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	teams, err := s.api.Teams(ctx)
	if err != nil {
		return errorResult("Error listing teams: %v", err), nil, nil
	}
	if teams == nil {
		teams = []linear.Team{}
	}
	res, err := jsonResult(teams)
	if err != nil {
		return errorResult("Error listing teams: %v", err), nil, nil
	}
	return res, nil, nil
}

// ListStates handles linear_list_states. States come back in board order.
func (s *Server) ListStates(ctx context.Context, _ *mcp.CallToolRequest, in ListStatesInput) (*mcp.CallToolResult, any, error) {
	states, err := s.api.WorkflowStates(ctx, in.TeamID)
	if err != nil {
		return errorResult("Error listing states: %v", err), nil, nil
	}
	if states == nil {
		states = []linear.WorkflowState{}
	}
	res, err := jsonResult(states)
	if err != nil {
		return errorResult("Error listing states: %v", err), nil, nil
	}
	return res, nil, nil
}
