package linear

import (
	"context"
	"fmt"
)

// IssueComments fetches the most recent page of comments on an issue
func (c *Client) IssueComments(ctx context.Context, issueID string, first int) ([]Comment, error) {
	query := `
		query IssueComments($id: String!, $first: Int!) {
			issue(id: $id) {
				comments(first: $first) {
					nodes {` + commentFields + `}
				}
			}
		}
	`

	var result struct {
		Issue *struct {
			Comments struct {
				Nodes []Comment `json:"nodes"`
			} `json:"comments"`
		} `json:"issue"`
	}

	if err := c.Execute(ctx, query, map[string]interface{}{
		"id":    issueID,
		"first": first,
	}, &result); err != nil {
		return nil, err
	}

	if result.Issue == nil {
		return nil, fmt.Errorf("issue %s: %w", issueID, ErrNotFound)
	}

	return result.Issue.Comments.Nodes, nil
}

// GetComment fetches a single comment
func (c *Client) GetComment(ctx context.Context, id string) (*Comment, error) {
	query := `
		query GetComment($id: String!) {
			comment(id: $id) {` + commentFields + `}
		}
	`

	var result struct {
		Comment *Comment `json:"comment"`
	}

	if err := c.Execute(ctx, query, map[string]interface{}{"id": id}, &result); err != nil {
		return nil, err
	}
	if result.Comment == nil {
		return nil, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}

	return result.Comment, nil
}

// TopLevelCommentID returns the root of the thread containing commentID.
// Linear only accepts replies to top-level comments; when the lookup fails
// the id is returned unchanged.
func (c *Client) TopLevelCommentID(ctx context.Context, commentID string) string {
	comment, err := c.GetComment(ctx, commentID)
	if err != nil {
		return commentID
	}
	if parent := comment.ParentID(); parent != "" {
		return parent
	}
	return commentID
}

// CreateComment adds a comment (optionally a threaded reply) and returns it
func (c *Client) CreateComment(ctx context.Context, in CommentCreateInput) (*Comment, error) {
	mutation := `
		mutation CreateComment($input: CommentCreateInput!) {
			commentCreate(input: $input) {
				success
				comment {` + commentFields + `}
			}
		}
	`

	input := map[string]interface{}{
		"issueId": in.IssueID,
		"body":    in.Body,
	}
	if in.ParentID != "" {
		input["parentId"] = in.ParentID
	}

	var result struct {
		CommentCreate struct {
			Success bool     `json:"success"`
			Comment *Comment `json:"comment"`
		} `json:"commentCreate"`
	}

	if err := c.Execute(ctx, mutation, map[string]interface{}{"input": input}, &result); err != nil {
		return nil, err
	}
	if !result.CommentCreate.Success || result.CommentCreate.Comment == nil {
		return nil, fmt.Errorf("commentCreate reported failure")
	}

	return result.CommentCreate.Comment, nil
}

// AddComment adds a plain comment to an issue
func (c *Client) AddComment(ctx context.Context, issueID, body string) error {
	_, err := c.CreateComment(ctx, CommentCreateInput{IssueID: issueID, Body: body})
	return err
}
