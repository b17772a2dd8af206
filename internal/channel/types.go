// Package channel turns a watched Linear account into a stream of chat
// messages. A Channel polls the tracker on a schedule, diffs the assigned
// issue set against what it has already delivered, and emits one message
// per newly assigned issue and per new discussion comment.
package channel

import (
	"strings"
	"time"
)

const (
	// Name is the channel name reported to the router.
	Name = "linear"

	// JIDPrefix namespaces every chat identifier this channel owns.
	JIDPrefix = "linear:"

	// ChannelJID is the single aggregate conversation all deliveries go to.
	ChannelJID = JIDPrefix + "__channel__"

	// StateKey is where the processed issue record is persisted.
	StateKey = "linear:processedIssues"

	// LinearSender is the sender id used for issue deliveries.
	LinearSender     = "linear"
	LinearSenderName = "Linear"
)

// Trigger says why an issue was delivered.
type Trigger string

const (
	TriggerAssigned Trigger = "assigned"
	TriggerComment  Trigger = "comment"
)

// IssueSnapshot is the tracker-agnostic view of an assigned issue taken
// during a single poll.
type IssueSnapshot struct {
	ID            string
	Identifier    string
	Title         string
	Description   string
	Status        string
	PriorityLabel string
	Labels        []string
	URL           string
	UpdatedAt     time.Time
	CreatorID     string
}

// User is a tracker account.
type User struct {
	ID          string
	Name        string
	DisplayName string
}

// DisplayOrName prefers the display name.
func (u User) DisplayOrName() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Name
}

// Comment is a discussion comment. Author is nil when the tracker cannot
// resolve it (integrations, deleted users).
type Comment struct {
	ID        string
	Body      string
	Author    *User
	CreatedAt time.Time
}

// InboundMessage is the normalized message handed to the router.
type InboundMessage struct {
	ID           string `json:"id"`
	ChatJID      string `json:"chat_jid"`
	Sender       string `json:"sender"`
	SenderName   string `json:"sender_name"`
	Content      string `json:"content"`
	Timestamp    string `json:"timestamp"`
	IsFromMe     bool   `json:"is_from_me"`
	IsBotMessage bool   `json:"is_bot_message"`
}

// ChatMetadata announces a conversation surface to the router.
type ChatMetadata struct {
	JID       string `json:"jid"`
	Timestamp string `json:"timestamp"`
	Name      string `json:"name"`
	Channel   string `json:"channel"`
	IsGroup   bool   `json:"is_group"`
}

// OwnsJID reports whether jid belongs to the linear namespace.
func OwnsJID(jid string) bool {
	return strings.HasPrefix(jid, JIDPrefix)
}
