package channel

import (
	"context"
	"fmt"
)

// baselineComments marks every comment already on a newly seen issue as
// seen so that assignment does not replay the history.
func (c *Channel) baselineComments(ctx context.Context, tracker Tracker, issue IssueSnapshot) {
	comments, err := tracker.IssueComments(ctx, issue.ID, c.newIssueComments)
	if err != nil {
		c.logger.Warn("failed to mark existing comments", "issue_id", issue.ID, "error", err)
		return
	}

	c.mu.Lock()
	for _, comment := range comments {
		c.seenComments.Add(comment.ID)
	}
	c.mu.Unlock()
}

// checkNewComments delivers the comments on an updated issue that have
// not been seen before. Ids are marked seen before the author checks so a
// skipped comment is never re-evaluated.
func (c *Channel) checkNewComments(ctx context.Context, tracker Tracker, issue IssueSnapshot) {
	comments, err := tracker.IssueComments(ctx, issue.ID, c.updatedComments)
	if err != nil {
		c.logger.Warn("failed to check comments", "issue_id", issue.ID, "error", err)
		return
	}

	for _, comment := range comments {
		if !c.markSeen(comment.ID) {
			continue
		}

		author := comment.Author
		if author == nil {
			continue
		}
		if author.ID == c.cfg.UserID {
			continue
		}
		if !c.allow.Permits(author.ID) {
			c.logger.Info("Linear comment skipped: author not in allowed users",
				"identifier", issue.Identifier, "author", author.ID)
			continue
		}

		c.mu.Lock()
		c.lastDelivered = issue.ID
		c.mu.Unlock()

		c.emitter.OnMessage(ChannelJID, InboundMessage{
			ID:         comment.ID,
			ChatJID:    ChannelJID,
			Sender:     author.ID,
			SenderName: author.DisplayOrName(),
			Content:    formatComment(c.assistant, issue.Identifier, comment),
			Timestamp:  FormatTimestamp(comment.CreatedAt),
		})

		c.logger.Info("Linear comment delivered", "identifier", issue.Identifier, "author", author.DisplayOrName())
	}
}

// markSeen records id and reports whether it was new. Ids the bot posted
// itself are never new.
func (c *Channel) markSeen(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seenComments.Has(id) || c.botComments.Has(id) {
		return false
	}
	c.seenComments.Add(id)
	return true
}

// TrackBotComment records a comment the bot authored so it is never
// delivered back as inbound.
func (c *Channel) TrackBotComment(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.botComments.Add(id)
	c.mu.Unlock()
}

// PostReply posts body as a comment on the issue with the given identifier
// and tracks the new comment as bot-authored.
func (c *Channel) PostReply(ctx context.Context, identifier, body, parentID string) (string, error) {
	c.mu.RLock()
	session := c.session
	c.mu.RUnlock()
	if session == nil {
		session = c.tracker
	}

	issue, err := session.ResolveIssue(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("failed to resolve issue %s: %w", identifier, err)
	}

	id, err := session.PostComment(ctx, issue.ID, body, parentID)
	if err != nil {
		return "", fmt.Errorf("failed to post reply on %s: %w", identifier, err)
	}

	c.TrackBotComment(id)
	c.logger.Info("Linear reply posted", "identifier", issue.Identifier, "comment_id", id)
	return id, nil
}
