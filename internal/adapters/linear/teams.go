package linear

import (
	"context"
	"fmt"
	"sort"
)

// Teams lists all teams in the workspace
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	query := `query Teams { teams { nodes { id name key } } }`

	var result struct {
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.Execute(ctx, query, nil, &result); err != nil {
		return nil, err
	}
	return result.Teams.Nodes, nil
}

// WorkflowStates lists a team's workflow states ordered by board position
func (c *Client) WorkflowStates(ctx context.Context, teamID string) ([]WorkflowState, error) {
	query := `
		query TeamStates($id: String!) {
			team(id: $id) {
				states { nodes { id name type position } }
			}
		}
	`

	var result struct {
		Team *struct {
			States struct {
				Nodes []WorkflowState `json:"nodes"`
			} `json:"states"`
		} `json:"team"`
	}

	if err := c.Execute(ctx, query, map[string]interface{}{"id": teamID}, &result); err != nil {
		return nil, err
	}
	if result.Team == nil {
		return nil, fmt.Errorf("team %s: %w", teamID, ErrNotFound)
	}

	states := result.Team.States.Nodes
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].Position < states[j].Position
	})
	return states, nil
}
