package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/activeobjects-uk/nanoclaw/internal/channel"
	"github.com/activeobjects-uk/nanoclaw/internal/testutil"
)

type fakeStatus struct {
	status channel.Status
}

func (f *fakeStatus) Status() channel.Status { return f.status }

type fakeReplier struct {
	mu    sync.Mutex
	id    string
	err   error
	calls []ReplyRequest
}

func (f *fakeReplier) PostReply(_ context.Context, identifier, body, parentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, ReplyRequest{Identifier: identifier, Body: body, ParentID: parentID})
	return f.id, f.err
}

func (f *fakeReplier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestNewServer(t *testing.T) {
	config := &Config{Host: "127.0.0.1", Port: 9191}

	server := NewServer(config)

	if server.config != config {
		t.Error("Server config not set correctly")
	}
	if server.sessions == nil || server.router == nil || server.hub == nil {
		t.Error("server components not initialized")
	}
	if server.authConfig != nil {
		t.Error("auth should be off when config has none")
	}

	withAuth := NewServer(&Config{Auth: &AuthConfig{Type: AuthTypeLocal}})
	if withAuth.authConfig == nil || withAuth.authConfig.Type != AuthTypeLocal {
		t.Errorf("authConfig = %+v, want local", withAuth.authConfig)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := NewServer(&Config{}, WithAuthConfig(&AuthConfig{Type: AuthTypeAPIToken, Token: testutil.FakeBearerToken}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got '%s'", response["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	src := &fakeStatus{status: channel.Status{Connected: true, TrackedIssues: 3, LastDeliveredIssueID: "issue-1"}}
	server := NewServer(&Config{}, WithStatusSource(src), WithVersion("1.2.3"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var response StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Version != "1.2.3" || response.Running {
		t.Errorf("response = %+v", response)
	}
	if response.Channel == nil || !response.Channel.Connected || response.Channel.TrackedIssues != 3 {
		t.Errorf("channel = %+v", response.Channel)
	}
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	server := NewServer(&Config{}, WithAuthConfig(&AuthConfig{Type: AuthTypeAPIToken, Token: testutil.FakeBearerToken}))
	handler := server.Handler()

	for _, path := range []string{"/api/v1/status", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want 401", path, w.Code)
		}

		req.Header.Set("Authorization", "Bearer "+testutil.FakeBearerToken)
		w = httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s with token: status = %d, want 200", path, w.Code)
		}
	}
}

func TestReplyEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		replier    *fakeReplier
		body       string
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "success",
			replier:    &fakeReplier{id: "comment-9"},
			body:       `{"identifier":"ENG-1","body":"done","parentId":"c1"}`,
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
		{
			name:       "tracker failure",
			replier:    &fakeReplier{err: errors.New("failed to post reply on ENG-1: boom")},
			body:       `{"identifier":"ENG-1","body":"done"}`,
			wantStatus: http.StatusBadGateway,
			wantCalls:  1,
		},
		{
			name:       "missing body",
			replier:    &fakeReplier{},
			body:       `{"identifier":"ENG-1","body":"  "}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json",
			replier:    &fakeReplier{},
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no replier",
			body:       `{"identifier":"ENG-1","body":"x"}`,
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []ServerOption
			if tt.replier != nil {
				opts = append(opts, WithReplier(tt.replier))
			}
			server := NewServer(&Config{}, opts...)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/reply", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			server.Handler().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.replier != nil && tt.replier.callCount() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", tt.replier.callCount(), tt.wantCalls)
			}
			if tt.wantStatus == http.StatusOK {
				var resp ReplyResponse
				_ = json.NewDecoder(w.Body).Decode(&resp)
				if resp.CommentID != "comment-9" {
					t.Errorf("comment_id = %q", resp.CommentID)
				}
				if got := tt.replier.calls[0]; got.ParentID != "c1" {
					t.Errorf("parentId = %q, want c1", got.ParentID)
				}
			}
		})
	}
}

func TestReplyEndpointMethod(t *testing.T) {
	server := NewServer(&Config{}, WithReplier(&fakeReplier{}))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reply", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestMCPMount(t *testing.T) {
	mounted := NewServer(&Config{}, WithMCPHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "mcp:"+r.URL.Path)
	})))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	w := httptest.NewRecorder()
	mounted.Handler().ServeHTTP(w, req)
	if w.Body.String() != "mcp:/mcp" {
		t.Errorf("body = %q", w.Body.String())
	}

	unmounted := NewServer(&Config{})
	w = httptest.NewRecorder()
	unmounted.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unmounted status = %d, want 404", w.Code)
	}
}

// dialHub connects a websocket subscriber and waits until the hub sees it.
func dialHub(t *testing.T, server *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+ts.URL[4:]+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for server.sessions.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if server.sessions.Count() != 1 {
		t.Fatalf("subscriber not registered")
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	return msg
}

func TestHubBroadcastsDeliveries(t *testing.T) {
	server := NewServer(&Config{Auth: &AuthConfig{Type: AuthTypeLocal}})
	conn := dialHub(t, server)

	var emitter channel.Emitter = server.Hub()
	emitter.OnChatMetadata(channel.ChatMetadata{JID: channel.ChannelJID, Name: "Linear: ENG-1", Channel: channel.Name})
	emitter.OnMessage(channel.ChannelJID, channel.InboundMessage{ID: "m1", ChatJID: channel.ChannelJID, Content: "hello"})

	meta := readFrame(t, conn)
	if meta.Type != MessageTypeMetadata {
		t.Fatalf("first frame type = %s, want metadata", meta.Type)
	}
	var gotMeta channel.ChatMetadata
	_ = json.Unmarshal(meta.Payload, &gotMeta)
	if gotMeta.Name != "Linear: ENG-1" {
		t.Errorf("metadata = %+v", gotMeta)
	}

	msg := readFrame(t, conn)
	if msg.Type != MessageTypeMessage {
		t.Fatalf("second frame type = %s, want message", msg.Type)
	}
	var frame MessageFrame
	_ = json.Unmarshal(msg.Payload, &frame)
	if frame.JID != channel.ChannelJID || frame.Message.ID != "m1" || frame.Message.Content != "hello" {
		t.Errorf("frame = %+v", frame)
	}

	stats := server.Hub().Stats()
	if stats.Messages != 1 || stats.Metadata != 1 || stats.Subscribers != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWebSocketClientFrames(t *testing.T) {
	replier := &fakeReplier{id: "comment-1"}
	server := NewServer(&Config{}, WithReplier(replier))
	conn := dialHub(t, server)

	// ping echoes its payload
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping","payload":{"n":1}}`)); err != nil {
		t.Fatal(err)
	}
	pong := readFrame(t, conn)
	if pong.Type != MessageTypePong || string(pong.Payload) != `{"n":1}` {
		t.Errorf("pong = %+v", pong)
	}

	// reply posts through the replier
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"reply","payload":{"identifier":"ENG-1","body":"on it"}}`)); err != nil {
		t.Fatal(err)
	}
	result := readFrame(t, conn)
	if result.Type != MessageTypeReplyResult {
		t.Fatalf("reply frame type = %s", result.Type)
	}
	var resp ReplyResponse
	_ = json.Unmarshal(result.Payload, &resp)
	if resp.CommentID != "comment-1" || replier.callCount() != 1 {
		t.Errorf("resp = %+v, calls = %d", resp, replier.callCount())
	}

	// invalid reply
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"reply","payload":{"identifier":""}}`))
	if f := readFrame(t, conn); f.Type != MessageTypeError {
		t.Errorf("invalid reply frame type = %s, want error", f.Type)
	}

	// unknown type
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"subscribe"}`))
	if f := readFrame(t, conn); f.Type != MessageTypeError {
		t.Errorf("unknown frame type = %s, want error", f.Type)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	server := NewServer(&Config{})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+ts.URL[4:]+"/ws", header)
	if err == nil {
		t.Fatal("expected dial to fail for foreign origin")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", resp.StatusCode)
	}
}

func TestStartAndShutdown(t *testing.T) {
	server := NewServer(&Config{Host: "127.0.0.1", Port: 0})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for !server.isRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := server.Start(context.Background()); err == nil {
		t.Error("second Start should fail while running")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if server.isRunning() {
		t.Error("server still marked running")
	}
}
