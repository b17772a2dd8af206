// Package gateway serves the local control plane: health and status, a
// websocket feed of channel deliveries, the reply endpoint and the optional
// MCP tool mount.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/activeobjects-uk/nanoclaw/internal/channel"
	"github.com/activeobjects-uk/nanoclaw/internal/logging"
)

const (
	// wsPingInterval is the interval between ping frames sent to subscribers.
	wsPingInterval = 30 * time.Second
	// wsPongTimeout is how long to wait for a pong before dropping the subscriber.
	wsPongTimeout = 10 * time.Second
	// replyTimeout bounds a reply posted over the websocket.
	replyTimeout = 30 * time.Second
)

// Config holds gateway server configuration including network binding options.
type Config struct {
	// Enabled starts the gateway alongside the channel.
	Enabled bool `yaml:"enabled"`
	// Host is the network interface to bind to (e.g., "127.0.0.1" or "0.0.0.0").
	Host string `yaml:"host"`
	// Port is the TCP port number to listen on.
	Port int `yaml:"port"`
	// MCP mounts the Linear tools over streamable HTTP at /mcp.
	MCP bool `yaml:"mcp"`
	// Auth protects everything except /health. Nil disables auth.
	Auth *AuthConfig `yaml:"auth"`
}

// StatusSource reports the channel's state.
type StatusSource interface {
	Status() channel.Status
}

// Replier posts a reply comment on an issue.
type Replier interface {
	PostReply(ctx context.Context, identifier, body, parentID string) (string, error)
}

// Server is the gateway HTTP server. Server is safe for concurrent use.
type Server struct {
	config     *Config
	authConfig *AuthConfig
	version    string
	sessions   *SessionManager
	hub        *Hub
	router     *Router
	status     StatusSource
	replier    Replier
	mcp        http.Handler
	upgrader   websocket.Upgrader
	server     *http.Server
	logger     *slog.Logger
	mu         sync.RWMutex
	running    bool

	repliesOK     atomic.Int64
	repliesFailed atomic.Int64
}

// ServerOption is a functional option for configuring Server.
type ServerOption func(*Server)

// WithAuthConfig sets the authentication configuration for the server.
func WithAuthConfig(auth *AuthConfig) ServerOption {
	return func(s *Server) {
		s.authConfig = auth
	}
}

// WithStatusSource sets where /api/v1/status and /metrics read channel state.
func WithStatusSource(src StatusSource) ServerOption {
	return func(s *Server) {
		s.status = src
	}
}

// WithReplier enables POST /api/v1/reply and websocket reply frames.
func WithReplier(r Replier) ServerOption {
	return func(s *Server) {
		s.replier = r
	}
}

// SetStatusSource attaches the channel after construction, for callers
// that need Hub() before the channel exists.
func (s *Server) SetStatusSource(src StatusSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = src
}

// SetReplier attaches the reply target after construction.
func (s *Server) SetReplier(r Replier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replier = r
}

func (s *Server) statusSource() StatusSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Server) currentReplier() Replier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.replier
}

// WithMCPHandler mounts h at /mcp.
func WithMCPHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithVersion sets the version reported by /api/v1/status.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a new gateway server with the given configuration.
// The server is not started until Start is called.
func NewServer(config *Config, opts ...ServerOption) *Server {
	sessions := NewSessionManager()
	s := &Server{
		config:     config,
		authConfig: config.Auth,
		version:    "dev",
		sessions:   sessions,
		hub:        NewHub(sessions),
		router:     NewRouter(),
		logger:     logging.WithComponent("gateway"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Allow requests with no origin (same-origin, CLI tools, etc.)
				if origin == "" {
					return true
				}
				return strings.HasPrefix(origin, "http://localhost") ||
					strings.HasPrefix(origin, "http://127.0.0.1") ||
					strings.HasPrefix(origin, "https://localhost") ||
					strings.HasPrefix(origin, "https://127.0.0.1")
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router.Register(MessageTypeReply, s.handleReplyFrame)
	return s
}

// Hub returns the emitter that feeds websocket subscribers.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Public
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	protected := r.NewRoute().Subrouter()
	if s.authConfig != nil {
		protected.Use(NewAuthenticator(s.authConfig).Middleware)
	}
	protected.HandleFunc("/api/v1/status", s.handleStatus).Methods(http.MethodGet)
	protected.HandleFunc("/api/v1/reply", s.handleReply).Methods(http.MethodPost)
	protected.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	protected.HandleFunc("/ws", s.handleWebSocket)
	if s.mcp != nil {
		protected.PathPrefix("/mcp").Handler(s.mcp)
	}

	return r
}

// Start starts the gateway server and blocks until the context is cancelled
// or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	// No write timeout: /ws and /mcp hold long-lived streams.
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	s.logger.Info("Gateway starting", slog.String("addr", addr), slog.Bool("mcp", s.mcp != nil))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("gateway failed: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown gracefully shuts down the server with a 30-second timeout and
// disconnects websocket subscribers.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv := s.server
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.sessions.CloseAll()
	return srv.Shutdown(ctx)
}

func (s *Server) isRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// handleWebSocket registers a subscriber and serves its client frames.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade error", slog.Any("error", err))
		return
	}

	session := s.sessions.Create(conn)
	defer s.sessions.Remove(session.ID)

	s.logger.Info("New WebSocket session", slog.String("session_id", session.ID), slog.String("remote", r.RemoteAddr))

	conn.SetPongHandler(func(string) error {
		session.UpdatePing()
		return conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	})
	_ = conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("WebSocket error", slog.Any("error", err))
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
		s.router.HandleMessage(session, message)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Version     string          `json:"version"`
	Running     bool            `json:"running"`
	Subscribers int             `json:"subscribers"`
	Channel     *channel.Status `json:"channel,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:     s.version,
		Running:     s.isRunning(),
		Subscribers: s.sessions.Count(),
	}
	if src := s.statusSource(); src != nil {
		st := src.Status()
		resp.Channel = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// ReplyRequest asks for a comment on an issue, optionally threaded under
// parentId.
type ReplyRequest struct {
	Identifier string `json:"identifier"`
	Body       string `json:"body"`
	ParentID   string `json:"parentId,omitempty"`
}

// ReplyResponse reports the id of the posted comment.
type ReplyResponse struct {
	CommentID string `json:"comment_id"`
}

func (req ReplyRequest) validate() error {
	if strings.TrimSpace(req.Identifier) == "" {
		return errors.New("identifier is required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return errors.New("body is required")
	}
	return nil
}

func (s *Server) postReply(ctx context.Context, replier Replier, req ReplyRequest) (string, error) {
	id, err := replier.PostReply(ctx, req.Identifier, req.Body, req.ParentID)
	if err != nil {
		s.repliesFailed.Add(1)
		s.logger.Error("reply failed", slog.String("issue", req.Identifier), slog.Any("error", err))
		return "", err
	}
	s.repliesOK.Add(1)
	s.logger.Info("reply posted", slog.String("issue", req.Identifier), slog.String("comment_id", id))
	return id, nil
}

// handleReply posts a comment through the channel. Tracker failures map to
// 502 Bad Gateway.
func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	replier := s.currentReplier()
	if replier == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "replies not configured"})
		return
	}

	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	id, err := s.postReply(r.Context(), replier, req)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ReplyResponse{CommentID: id})
}

// handleReplyFrame is the websocket form of POST /api/v1/reply.
func (s *Server) handleReplyFrame(session *Session, payload json.RawMessage) {
	replier := s.currentReplier()
	if replier == nil {
		sendFrame(session, MessageTypeError, map[string]string{"error": "replies not configured"})
		return
	}

	var req ReplyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		sendFrame(session, MessageTypeError, map[string]string{"error": "invalid reply payload"})
		return
	}
	if err := req.validate(); err != nil {
		sendFrame(session, MessageTypeError, map[string]string{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), replyTimeout)
	defer cancel()

	id, err := s.postReply(ctx, replier, req)
	if err != nil {
		sendFrame(session, MessageTypeError, map[string]string{"error": err.Error()})
		return
	}
	sendFrame(session, MessageTypeReplyResult, ReplyResponse{CommentID: id})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	exporter := NewPrometheusExporter(s)
	if err := exporter.WritePrometheus(w); err != nil {
		s.logger.Warn("failed to write metrics", slog.Any("error", err))
	}
}
