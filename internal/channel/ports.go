package channel

import (
	"context"
	"time"
)

// Tracker is everything the channel needs from the issue tracker.
type Tracker interface {
	// Viewer returns the account that owns the credentials.
	Viewer(ctx context.Context) (User, error)
	// AssignedIssues lists the open issues assigned to userID.
	AssignedIssues(ctx context.Context, userID string) ([]IssueSnapshot, error)
	// IssueComments returns up to first comments on an issue.
	IssueComments(ctx context.Context, issueID string, first int) ([]Comment, error)
	// ResolveIssue maps an identifier such as "ENG-123" to an issue.
	ResolveIssue(ctx context.Context, identifier string) (IssueSnapshot, error)
	// PostComment adds a comment and returns its id.
	PostComment(ctx context.Context, issueID, body, parentID string) (string, error)
}

// StateStore is a string key/value store. GetState returns "" for a
// missing key.
type StateStore interface {
	GetState(key string) (string, error)
	SetState(key, value string) error
}

// Emitter receives everything the channel delivers.
type Emitter interface {
	OnMessage(jid string, msg InboundMessage)
	OnChatMetadata(meta ChatMetadata)
}

// Scheduler runs fn every interval until the returned cancel is called.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func(), err error)
}
