package linear

import (
	"context"
	"fmt"
	"strings"
)

// issueFields is the selection set shared by every issue query.
const issueFields = `
	id
	identifier
	title
	description
	priority
	priorityLabel
	url
	state { id name type }
	labels { nodes { id name } }
	assignee { id name displayName email }
	creator { id name displayName }
	team { id name key }
	createdAt
	updatedAt
`

// commentFields is the selection set shared by every comment query.
const commentFields = `
	id
	body
	createdAt
	user { id name displayName }
	parent { id }
`

// AssignedIssues lists open (not completed/canceled) issues assigned to userID.
func (c *Client) AssignedIssues(ctx context.Context, userID string, first int) ([]*Issue, error) {
	query := `
		query AssignedIssues($userId: String!, $first: Int!, $closed: [String!]) {
			user(id: $userId) {
				assignedIssues(first: $first, filter: { state: { type: { nin: $closed } } }) {
					nodes {` + issueFields + `}
				}
			}
		}
	`

	closed := make([]string, 0, len(closedStateTypes))
	for _, st := range closedStateTypes {
		closed = append(closed, string(st))
	}

	var result struct {
		User *struct {
			AssignedIssues struct {
				Nodes []*issueNode `json:"nodes"`
			} `json:"assignedIssues"`
		} `json:"user"`
	}

	if err := c.Execute(ctx, query, map[string]interface{}{
		"userId": userID,
		"first":  first,
		"closed": closed,
	}, &result); err != nil {
		return nil, err
	}

	if result.User == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}

	return toIssues(result.User.AssignedIssues.Nodes), nil
}

// GetIssue fetches an issue by ID (or identifier) including its recent comments
func (c *Client) GetIssue(ctx context.Context, id string, commentLimit int) (*Issue, error) {
	query := `
		query GetIssue($id: String!, $comments: Int!) {
			issue(id: $id) {` + issueFields + `
				comments(first: $comments) {
					nodes {` + commentFields + `}
				}
			}
		}
	`

	var result struct {
		Issue *issueNode `json:"issue"`
	}

	if err := c.Execute(ctx, query, map[string]interface{}{
		"id":       id,
		"comments": commentLimit,
	}, &result); err != nil {
		return nil, err
	}

	if result.Issue == nil {
		return nil, fmt.Errorf("issue %s: %w", id, ErrNotFound)
	}

	return result.Issue.toIssue(), nil
}

// SearchIssues runs a full-text issue search
func (c *Client) SearchIssues(ctx context.Context, term string, first int) ([]*Issue, error) {
	query := `
		query SearchIssues($term: String!, $first: Int!) {
			searchIssues(term: $term, first: $first) {
				nodes {` + issueFields + `}
			}
		}
	`

	var result struct {
		SearchIssues struct {
			Nodes []*issueNode `json:"nodes"`
		} `json:"searchIssues"`
	}

	if err := c.Execute(ctx, query, map[string]interface{}{
		"term":  term,
		"first": first,
	}, &result); err != nil {
		return nil, err
	}

	return toIssues(result.SearchIssues.Nodes), nil
}

// ResolveIssue maps a human identifier such as "ENG-123" to the full issue.
// An exact (case-insensitive) identifier match wins over the top search hit.
func (c *Client) ResolveIssue(ctx context.Context, identifier string, commentLimit int) (*Issue, error) {
	hits, err := c.SearchIssues(ctx, identifier, 5)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("issue %q: %w", identifier, ErrNotFound)
	}

	match := hits[0]
	for _, hit := range hits {
		if strings.EqualFold(hit.Identifier, identifier) {
			match = hit
			break
		}
	}

	// Search results lack relations; fetch the full issue.
	return c.GetIssue(ctx, match.ID, commentLimit)
}

// UpdateIssue applies the non-empty fields of input and returns their names.
func (c *Client) UpdateIssue(ctx context.Context, issueID string, input IssueUpdateInput) ([]string, error) {
	fields, names := input.Fields()
	if len(names) == 0 {
		return nil, fmt.Errorf("no updates provided")
	}

	mutation := `
		mutation UpdateIssue($id: String!, $input: IssueUpdateInput!) {
			issueUpdate(id: $id, input: $input) {
				success
			}
		}
	`

	var result struct {
		IssueUpdate struct {
			Success bool `json:"success"`
		} `json:"issueUpdate"`
	}

	if err := c.Execute(ctx, mutation, map[string]interface{}{
		"id":    issueID,
		"input": fields,
	}, &result); err != nil {
		return nil, err
	}
	if !result.IssueUpdate.Success {
		return nil, fmt.Errorf("issueUpdate reported failure")
	}

	return names, nil
}

// CreateIssue creates a new issue and returns it
func (c *Client) CreateIssue(ctx context.Context, in IssueCreateInput) (*Issue, error) {
	mutation := `
		mutation CreateIssue($input: IssueCreateInput!) {
			issueCreate(input: $input) {
				success
				issue {` + issueFields + `}
			}
		}
	`

	input := map[string]interface{}{
		"teamId": in.TeamID,
		"title":  in.Title,
	}
	if in.Description != "" {
		input["description"] = in.Description
	}
	if in.Priority != nil {
		input["priority"] = *in.Priority
	}
	if in.StateID != "" {
		input["stateId"] = in.StateID
	}
	if in.AssigneeID != "" {
		input["assigneeId"] = in.AssigneeID
	}

	var result struct {
		IssueCreate struct {
			Success bool       `json:"success"`
			Issue   *issueNode `json:"issue"`
		} `json:"issueCreate"`
	}

	if err := c.Execute(ctx, mutation, map[string]interface{}{"input": input}, &result); err != nil {
		return nil, err
	}
	if !result.IssueCreate.Success {
		return nil, fmt.Errorf("issueCreate reported failure")
	}
	if result.IssueCreate.Issue == nil {
		return nil, nil
	}

	return result.IssueCreate.Issue.toIssue(), nil
}
