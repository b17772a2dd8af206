package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/activeobjects-uk/nanoclaw/internal/logging"
)

// Page sizes and dedup capacities.
const (
	DefaultNewIssueComments = 50
	DefaultUpdatedComments  = 20
	SeenCommentLimit        = 5000
	BotCommentLimit         = 1000
	DefaultAssistantName    = "Andy"
)

// Config holds the watched account and polling cadence.
type Config struct {
	UserID       string
	PollInterval time.Duration
}

// Channel is the Linear polling channel. It is safe for concurrent use;
// reconciliation passes are serialized.
type Channel struct {
	cfg       Config
	tracker   Tracker
	store     StateStore
	emitter   Emitter
	scheduler Scheduler
	clock     func() time.Time
	logger    *slog.Logger
	allow     AllowList
	assistant string

	newIssueComments int
	updatedComments  int

	// passMu serializes reconciliation passes
	passMu sync.Mutex

	mu            sync.RWMutex
	session       Tracker
	connected     bool
	cancel        func()
	processed     ProcessedIssues
	seenComments  *BoundedSet
	botComments   *BoundedSet
	lastDelivered string
	lastPollAt    time.Time
	lastPollErr   error
}

// Option configures a Channel
type Option func(*Channel)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) {
		c.logger = l
	}
}

// WithScheduler replaces the cron scheduler
func WithScheduler(s Scheduler) Option {
	return func(c *Channel) {
		c.scheduler = s
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Channel) {
		c.clock = now
	}
}

// WithAllowedUsers restricts delivery to issues created by, and comments
// written by, the given user ids.
func WithAllowedUsers(ids []string) Option {
	return func(c *Channel) {
		c.allow = NewAllowList(ids)
	}
}

// WithAssistantName sets the mention prefix on delivered content
func WithAssistantName(name string) Option {
	return func(c *Channel) {
		if name != "" {
			c.assistant = name
		}
	}
}

// WithCommentLimits sets the comment page sizes used when baselining a new
// issue and when checking an updated one.
func WithCommentLimits(newIssue, updated int) Option {
	return func(c *Channel) {
		if newIssue > 0 {
			c.newIssueComments = newIssue
		}
		if updated > 0 {
			c.updatedComments = updated
		}
	}
}

// New creates a disconnected channel.
func New(cfg Config, tracker Tracker, store StateStore, emitter Emitter, opts ...Option) *Channel {
	c := &Channel{
		cfg:              cfg,
		tracker:          tracker,
		store:            store,
		emitter:          emitter,
		clock:            time.Now,
		allow:            AllowList{},
		assistant:        DefaultAssistantName,
		newIssueComments: DefaultNewIssueComments,
		updatedComments:  DefaultUpdatedComments,
		processed:        ProcessedIssues{},
		seenComments:     NewBoundedSet(SeenCommentLimit),
		botComments:      NewBoundedSet(BotCommentLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.WithComponent("linear-channel")
	}
	if c.scheduler == nil {
		c.scheduler = NewCronScheduler(c.logger)
	}
	if c.emitter == nil {
		c.emitter = Emitters{}
	}
	return c
}

// Name returns "linear"
func (c *Channel) Name() string {
	return Name
}

// OwnsJID reports whether jid is in the linear namespace
func (c *Channel) OwnsJID(jid string) bool {
	return OwnsJID(jid)
}

// IsConnected reports whether Connect succeeded and Disconnect has not run
func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Connect verifies the credentials, restores persisted state, runs one pass
// and starts polling.
func (c *Channel) Connect(ctx context.Context) error {
	viewer, err := c.tracker.Viewer(ctx)
	if err != nil {
		return fmt.Errorf("linear identity check failed: %w", err)
	}
	c.logger.Info("Linear connected", "viewer", viewer.DisplayOrName(), "user_id", c.cfg.UserID)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.session = c.tracker
	c.connected = true
	c.mu.Unlock()

	c.loadState()

	passCtx := context.WithoutCancel(ctx)
	c.Poll(passCtx)

	cancel, err := c.scheduler.Every(c.cfg.PollInterval, func() { c.Poll(passCtx) })
	if err != nil {
		_ = c.Disconnect()
		return fmt.Errorf("failed to schedule polling: %w", err)
	}

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.logger.Info("Linear polling started", "interval", c.cfg.PollInterval)
	return nil
}

// Disconnect stops polling. An in-flight pass runs to completion. Calling
// it more than once is harmless.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	cancel := c.cancel
	wasConnected := c.connected
	c.cancel = nil
	c.session = nil
	c.connected = false
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wasConnected {
		c.logger.Info("Linear disconnected")
	}
	return nil
}

// SendMessage is a no-op. Replies go through PostReply or the tool server.
func (c *Channel) SendMessage(ctx context.Context, jid, text string) error {
	return nil
}

// SetTyping is a no-op; Linear has no typing indicator.
func (c *Channel) SetTyping(ctx context.Context, jid string, typing bool) error {
	return nil
}

// loadState restores the processed issue record. Unreadable state is
// logged and treated as empty.
func (c *Channel) loadState() {
	raw, err := c.store.GetState(StateKey)
	if err != nil {
		c.logger.Warn("failed to load Linear state", "error", err)
		raw = ""
	}

	processed, err := DecodeProcessedIssues(raw)
	if err != nil {
		c.logger.Warn("ignoring unparsable Linear state", "error", err)
		processed = ProcessedIssues{}
	}

	c.mu.Lock()
	c.processed = processed
	c.mu.Unlock()

	c.logger.Debug("Linear state loaded", "tracked_issues", len(processed))
}

// saveState writes the whole processed issue record.
func (c *Channel) saveState() error {
	c.mu.RLock()
	raw, err := c.processed.Encode()
	c.mu.RUnlock()
	if err != nil {
		return err
	}
	if err := c.store.SetState(StateKey, raw); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Poll runs one reconciliation pass. Failures are logged, never returned.
func (c *Channel) Poll(ctx context.Context) {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		return
	}

	err := c.runPass(ctx, session)

	c.mu.Lock()
	c.lastPollAt = c.clock()
	c.lastPollErr = err
	c.mu.Unlock()

	if err != nil {
		c.logger.Error("Linear poll error", "error", err)
	}
}

// runPass reports a panicking pass as an ordinary poll error.
func (c *Channel) runPass(ctx context.Context, tracker Tracker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll pass panicked: %v", r)
		}
	}()
	return c.reconcile(ctx, tracker)
}

func (c *Channel) reconcile(ctx context.Context, tracker Tracker) error {
	issues, err := tracker.AssignedIssues(ctx, c.cfg.UserID)
	if err != nil {
		return fmt.Errorf("failed to fetch assigned issues: %w", err)
	}

	c.mu.RLock()
	changes, vanished := Detect(issues, c.processed)
	c.mu.RUnlock()

	for _, change := range changes {
		issue := change.Issue
		c.record(issue)

		switch change.Kind {
		case ChangeNew:
			c.baselineComments(ctx, tracker, issue)
			if !c.allow.Permits(issue.CreatorID) {
				c.logger.Info("Linear issue skipped: creator not in allowed users",
					"identifier", issue.Identifier, "creator", issue.CreatorID)
				continue
			}
			c.deliverIssue(issue, TriggerAssigned)
		case ChangeUpdated:
			c.checkNewComments(ctx, tracker, issue)
		}
	}

	if len(vanished) > 0 {
		c.mu.Lock()
		for _, id := range vanished {
			delete(c.processed, id)
		}
		c.mu.Unlock()
		c.logger.Debug("pruned unassigned issues", "count", len(vanished))
	}

	return c.saveState()
}

func (c *Channel) record(issue IssueSnapshot) {
	c.mu.Lock()
	c.processed[issue.ID] = normalizeTime(issue.UpdatedAt)
	c.mu.Unlock()
}

// deliverIssue announces the surface and emits the issue message.
func (c *Channel) deliverIssue(issue IssueSnapshot, trigger Trigger) {
	timestamp := FormatTimestamp(c.clock())

	c.mu.Lock()
	c.lastDelivered = issue.ID
	c.mu.Unlock()

	c.emitter.OnChatMetadata(ChatMetadata{
		JID:       ChannelJID,
		Timestamp: timestamp,
		Name:      "Linear: " + issue.Identifier,
		Channel:   Name,
		IsGroup:   false,
	})

	c.emitter.OnMessage(ChannelJID, InboundMessage{
		ID:         fmt.Sprintf("%s-%s-%s", issue.ID, trigger, uuid.NewString()),
		ChatJID:    ChannelJID,
		Sender:     LinearSender,
		SenderName: LinearSenderName,
		Content:    formatIssue(c.assistant, issue, trigger),
		Timestamp:  timestamp,
	})

	c.logger.Info("Linear issue delivered", "identifier", issue.Identifier, "trigger", trigger)
}

// Status is a point-in-time view of the channel for operators.
type Status struct {
	Connected            bool      `json:"connected"`
	TrackedIssues        int       `json:"tracked_issues"`
	SeenComments         int       `json:"seen_comments"`
	BotComments          int       `json:"bot_comments"`
	LastDeliveredIssueID string    `json:"last_delivered_issue_id,omitempty"`
	LastPollAt           time.Time `json:"last_poll_at"`
	LastPollErr          string    `json:"last_poll_error,omitempty"`
}

// Status returns counters and the outcome of the last pass.
func (c *Channel) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Status{
		Connected:            c.connected,
		TrackedIssues:        len(c.processed),
		SeenComments:         c.seenComments.Len(),
		BotComments:          c.botComments.Len(),
		LastDeliveredIssueID: c.lastDelivered,
		LastPollAt:           c.lastPollAt,
	}
	if c.lastPollErr != nil {
		s.LastPollErr = c.lastPollErr.Error()
	}
	return s
}

// LastDeliveredIssueID returns the id of the most recently delivered issue.
func (c *Channel) LastDeliveredIssueID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastDelivered
}
