package linear

import "time"

// Priority levels
const (
	PriorityNone   = 0
	PriorityUrgent = 1
	PriorityHigh   = 2
	PriorityMedium = 3
	PriorityLow    = 4
)

// PriorityName returns the human-readable priority name
func PriorityName(priority int) string {
	switch priority {
	case PriorityUrgent:
		return "Urgent"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return "No priority"
	}
}

// StateType represents issue state types
type StateType string

const (
	StateTypeTriage    StateType = "triage"
	StateTypeBacklog   StateType = "backlog"
	StateTypeUnstarted StateType = "unstarted"
	StateTypeStarted   StateType = "started"
	StateTypeCompleted StateType = "completed"
	StateTypeCanceled  StateType = "canceled"
)

// closedStateTypes are excluded when listing the watched user's open work.
var closedStateTypes = []StateType{StateTypeCompleted, StateTypeCanceled}

// Issue represents a Linear issue
type Issue struct {
	ID            string    `json:"id"`
	Identifier    string    `json:"identifier"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Priority      int       `json:"priority"`
	PriorityLabel string    `json:"priorityLabel"`
	URL           string    `json:"url"`
	State         State     `json:"state"`
	Labels        []Label   `json:"labels"`
	Assignee      *User     `json:"assignee"`
	Creator       *User     `json:"creator"`
	Team          Team      `json:"team"`
	Comments      []Comment `json:"comments,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// CreatorID returns the id of the issue's creator, or "" for integration-created issues.
func (i *Issue) CreatorID() string {
	if i.Creator == nil {
		return ""
	}
	return i.Creator.ID
}

// LabelNames returns the label names in API order.
func (i *Issue) LabelNames() []string {
	names := make([]string, 0, len(i.Labels))
	for _, l := range i.Labels {
		names = append(names, l.Name)
	}
	return names
}

// State represents an issue state
type State struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// WorkflowState is a team workflow state with its board position.
type WorkflowState struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Position float64 `json:"position"`
}

// Label represents a Linear label
type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// User represents a Linear user
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// DisplayOrName prefers the display name, falling back to the full name.
func (u *User) DisplayOrName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

// Team represents a Linear team
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Comment represents a comment on an issue. User is nil for bot/integration comments.
type Comment struct {
	ID        string      `json:"id"`
	Body      string      `json:"body"`
	User      *User       `json:"user"`
	Parent    *CommentRef `json:"parent"`
	CreatedAt time.Time   `json:"createdAt"`
}

// CommentRef references another comment by id.
type CommentRef struct {
	ID string `json:"id"`
}

// ParentID returns the parent comment id for threaded replies.
func (c *Comment) ParentID() string {
	if c.Parent == nil {
		return ""
	}
	return c.Parent.ID
}

// Attachment is a link attached to an issue.
type Attachment struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// UploadFile holds the signed upload target returned by the fileUpload mutation.
type UploadFile struct {
	UploadURL string         `json:"uploadUrl"`
	AssetURL  string         `json:"assetUrl"`
	Headers   []UploadHeader `json:"headers"`
}

// UploadHeader is a header that must accompany the PUT to UploadURL.
type UploadHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// IssueUpdateInput holds optional issue field updates. Nil/empty fields are not sent.
type IssueUpdateInput struct {
	StateID     string
	Priority    *int
	Title       string
	Description string
	AssigneeID  string
}

// Fields returns the GraphQL input object and the names of the fields being changed.
func (in IssueUpdateInput) Fields() (map[string]interface{}, []string) {
	fields := map[string]interface{}{}
	var names []string
	add := func(name string, v interface{}) {
		fields[name] = v
		names = append(names, name)
	}
	if in.StateID != "" {
		add("stateId", in.StateID)
	}
	if in.Priority != nil {
		add("priority", *in.Priority)
	}
	if in.Title != "" {
		add("title", in.Title)
	}
	if in.Description != "" {
		add("description", in.Description)
	}
	if in.AssigneeID != "" {
		add("assigneeId", in.AssigneeID)
	}
	return fields, names
}

// IssueCreateInput holds the fields for a new issue.
type IssueCreateInput struct {
	TeamID      string
	Title       string
	Description string
	Priority    *int
	StateID     string
	AssigneeID  string
}

// CommentCreateInput holds the fields for a new comment.
type CommentCreateInput struct {
	IssueID  string
	Body     string
	ParentID string
}

// issueNode is the raw GraphQL shape of an issue (connections have nested nodes)
type issueNode struct {
	ID            string `json:"id"`
	Identifier    string `json:"identifier"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Priority      int    `json:"priority"`
	PriorityLabel string `json:"priorityLabel"`
	URL           string `json:"url"`
	State         State  `json:"state"`
	Labels        struct {
		Nodes []Label `json:"nodes"`
	} `json:"labels"`
	Comments struct {
		Nodes []Comment `json:"nodes"`
	} `json:"comments"`
	Assignee  *User     `json:"assignee"`
	Creator   *User     `json:"creator"`
	Team      Team      `json:"team"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// toIssue converts the response to an Issue
func (r *issueNode) toIssue() *Issue {
	return &Issue{
		ID:            r.ID,
		Identifier:    r.Identifier,
		Title:         r.Title,
		Description:   r.Description,
		Priority:      r.Priority,
		PriorityLabel: r.PriorityLabel,
		URL:           r.URL,
		State:         r.State,
		Labels:        r.Labels.Nodes,
		Comments:      r.Comments.Nodes,
		Assignee:      r.Assignee,
		Creator:       r.Creator,
		Team:          r.Team,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toIssues(nodes []*issueNode) []*Issue {
	issues := make([]*Issue, 0, len(nodes))
	for _, n := range nodes {
		issues = append(issues, n.toIssue())
	}
	return issues
}
