package gateway

import (
	"log/slog"
	"sync/atomic"

	"github.com/activeobjects-uk/nanoclaw/internal/channel"
	"github.com/activeobjects-uk/nanoclaw/internal/logging"
)

// Hub fans channel deliveries out to websocket subscribers. It satisfies
// channel.Emitter.
type Hub struct {
	sessions  *SessionManager
	logger    *slog.Logger
	messages  atomic.Int64
	metadata  atomic.Int64
	sendFails atomic.Int64
}

var _ channel.Emitter = (*Hub)(nil)

// NewHub creates a hub over sessions.
func NewHub(sessions *SessionManager) *Hub {
	return &Hub{
		sessions: sessions,
		logger:   logging.WithComponent("gateway"),
	}
}

// MessageFrame is the payload of a "message" frame.
type MessageFrame struct {
	JID     string                 `json:"jid"`
	Message channel.InboundMessage `json:"message"`
}

// OnMessage broadcasts an inbound message.
func (h *Hub) OnMessage(jid string, msg channel.InboundMessage) {
	h.messages.Add(1)
	h.broadcast(MessageTypeMessage, MessageFrame{JID: jid, Message: msg})
}

// OnChatMetadata broadcasts chat metadata.
func (h *Hub) OnChatMetadata(meta channel.ChatMetadata) {
	h.metadata.Add(1)
	h.broadcast(MessageTypeMetadata, meta)
}

func (h *Hub) broadcast(msgType MessageType, payload interface{}) {
	frame, err := encodeFrame(msgType, payload)
	if err != nil {
		h.logger.Error("failed to encode frame", slog.String("type", string(msgType)), slog.Any("error", err))
		return
	}
	total := h.sessions.Count()
	if sent := h.sessions.Broadcast(frame); sent < total {
		h.sendFails.Add(int64(total - sent))
	}
}

// HubStats are cumulative hub counters.
type HubStats struct {
	Messages    int64
	Metadata    int64
	SendFailure int64
	Subscribers int
}

// Stats returns the hub counters.
func (h *Hub) Stats() HubStats {
	return HubStats{
		Messages:    h.messages.Load(),
		Metadata:    h.metadata.Load(),
		SendFailure: h.sendFails.Load(),
		Subscribers: h.sessions.Count(),
	}
}
