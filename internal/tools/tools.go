// Package tools exposes Linear operations to the agent as MCP tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/activeobjects-uk/nanoclaw/internal/adapters/linear"
	"github.com/activeobjects-uk/nanoclaw/internal/config"
	"github.com/activeobjects-uk/nanoclaw/internal/logging"
)

// ServerName is the MCP implementation name advertised to clients.
const ServerName = "linear"

// API is the subset of the Linear client the tools need.
type API interface {
	ResolveIssue(ctx context.Context, identifier string, commentLimit int) (*linear.Issue, error)
	SearchIssues(ctx context.Context, term string, first int) ([]*linear.Issue, error)
	UpdateIssue(ctx context.Context, issueID string, input linear.IssueUpdateInput) ([]string, error)
	CreateIssue(ctx context.Context, in linear.IssueCreateInput) (*linear.Issue, error)
	TopLevelCommentID(ctx context.Context, commentID string) string
	CreateComment(ctx context.Context, in linear.CommentCreateInput) (*linear.Comment, error)
	Teams(ctx context.Context) ([]linear.Team, error)
	WorkflowStates(ctx context.Context, teamID string) ([]linear.WorkflowState, error)
	RequestUpload(ctx context.Context, contentType, filename string, size int) (*linear.UploadFile, error)
	PutFile(ctx context.Context, upload *linear.UploadFile, contentType string, data []byte) error
	CreateAttachment(ctx context.Context, issueID, url, title string) (*linear.Attachment, error)
}

var _ API = (*linear.Client)(nil)

// Server holds the tool handlers and their dependencies.
type Server struct {
	api          API
	workspaceDir string
	version      string
	onComment    func(commentID string)
	logger       *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithWorkspaceDir sets the directory relative upload paths resolve against.
func WithWorkspaceDir(dir string) Option {
	return func(s *Server) {
		if dir != "" {
			s.workspaceDir = dir
		}
	}
}

// WithCommentHook is called with the id of every comment the tools post,
// so the channel can skip the agent's own comments.
func WithCommentHook(fn func(commentID string)) Option {
	return func(s *Server) {
		s.onComment = fn
	}
}

// WithVersion sets the advertised server version.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// New creates a tool server over api.
func New(api API, opts ...Option) *Server {
	s := &Server{
		api:          api,
		workspaceDir: config.DefaultWorkspaceDir,
		version:      "dev",
		logger:       logging.WithComponent("mcp"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MCPServer builds an MCP server with every Linear tool registered.
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: s.version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "linear_get_issue",
		Description: "Get full details of a Linear issue including title, description, status, priority, labels, assignee, and recent comments.",
	}, s.GetIssue)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "linear_update_issue",
		Description: "Update fields on a Linear issue such as status, priority, title, or description.",
	}, s.UpdateIssue)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "linear_add_comment",
		Description: "Add a comment to a Linear issue. Use parentId to reply in a thread.",
	}, s.AddComment)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "linear_search_issues",
		Description: "Search for Linear issues by text query. Returns matching issues with their status and assignee.",
	}, s.SearchIssues)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "linear_create_issue",
		Description: "Create a new Linear issue.",
	}, s.CreateIssue)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "linear_list_teams",
		Description: "List all Linear teams. Use this to find team IDs for creating issues.",
	}, s.ListTeams)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "linear_list_states",
		Description: "List workflow states for a team. Use this to find state IDs for updating issue status.",
	}, s.ListStates)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "linear_upload_file",
		Description: fmt.Sprintf("Upload a file from the workspace and attach it to a Linear issue. File path is relative to %s/ or absolute.", s.workspaceDir),
	}, s.UploadFile)

	return server
}

// RunStdio serves the tools over stdin/stdout until ctx is cancelled or
// the client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio", "version", s.version)
	if err := s.MCPServer().Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

// HTTPHandler serves the tools over streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	server := s.MCPServer()
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return textResult(string(data)), nil
}
