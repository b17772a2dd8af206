package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/activeobjects-uk/nanoclaw/internal/logging"
)

// MessageType defines the type of a websocket frame
type MessageType string

const (
	// Server to client
	MessageTypeMessage     MessageType = "message"
	MessageTypeMetadata    MessageType = "metadata"
	MessageTypeReplyResult MessageType = "reply_result"
	MessageTypeError       MessageType = "error"
	MessageTypePong        MessageType = "pong"

	// Client to server
	MessageTypePing  MessageType = "ping"
	MessageTypeReply MessageType = "reply"
)

// Message is the envelope for every websocket frame
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageHandler handles one client frame.
type MessageHandler func(session *Session, payload json.RawMessage)

// Router dispatches client frames to handlers by type
type Router struct {
	handlers map[MessageType][]MessageHandler
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewRouter creates a router that answers pings.
func NewRouter() *Router {
	r := &Router{
		handlers: make(map[MessageType][]MessageHandler),
		logger:   logging.WithComponent("gateway"),
	}
	r.Register(MessageTypePing, r.handlePing)
	return r
}

// Register adds a handler for a message type
func (r *Router) Register(msgType MessageType, handler MessageHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[msgType] = append(r.handlers[msgType], handler)
}

// HandleMessage routes a raw frame to the registered handlers. Unparseable
// or unknown frames get an error frame back.
func (r *Router) HandleMessage(session *Session, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Warn("failed to parse websocket message", slog.Any("error", err))
		sendFrame(session, MessageTypeError, map[string]string{"error": "invalid message"})
		return
	}

	r.mu.RLock()
	handlers, ok := r.handlers[msg.Type]
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("no handler for message type", slog.String("type", string(msg.Type)))
		sendFrame(session, MessageTypeError, map[string]string{"error": "unknown message type: " + string(msg.Type)})
		return
	}

	for _, handler := range handlers {
		handler(session, msg.Payload)
	}
}

func (r *Router) handlePing(session *Session, payload json.RawMessage) {
	session.UpdatePing()
	response, _ := json.Marshal(Message{
		Type:    MessageTypePong,
		Payload: payload,
	})
	_ = session.Send(response)
}

// encodeFrame builds a frame with a JSON payload.
func encodeFrame(msgType MessageType, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: msgType, Payload: raw})
}

func sendFrame(session *Session, msgType MessageType, payload interface{}) {
	frame, err := encodeFrame(msgType, payload)
	if err != nil {
		return
	}
	_ = session.Send(frame)
}
