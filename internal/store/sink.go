package store

import (
	"log/slog"

	"github.com/activeobjects-uk/nanoclaw/internal/channel"
	"github.com/activeobjects-uk/nanoclaw/internal/logging"
)

// Sink writes channel deliveries into the store for the router to pick up.
// Write failures are logged; delivery to other sinks continues.
type Sink struct {
	store  *Store
	logger *slog.Logger
}

// NewSink creates a sink over s.
func NewSink(s *Store) *Sink {
	return &Sink{store: s, logger: logging.WithComponent("store")}
}

func (k *Sink) OnMessage(jid string, msg channel.InboundMessage) {
	if msg.ChatJID == "" {
		msg.ChatJID = jid
	}
	if err := k.store.StoreMessage(msg); err != nil {
		k.logger.Error("failed to persist inbound message", "jid", jid, "id", msg.ID, "error", err)
	}
}

func (k *Sink) OnChatMetadata(meta channel.ChatMetadata) {
	if err := k.store.StoreChatMetadata(meta); err != nil {
		k.logger.Error("failed to persist chat metadata", "jid", meta.JID, "error", err)
	}
}
