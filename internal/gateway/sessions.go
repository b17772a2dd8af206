package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// wsWriteTimeout is the deadline for writing a message to a subscriber.
const wsWriteTimeout = 5 * time.Second

// Session is a connected websocket subscriber.
type Session struct {
	ID        string
	Conn      *websocket.Conn
	CreatedAt time.Time
	LastPing  time.Time
	mu        sync.Mutex
}

// SessionManager manages active sessions
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// Create registers a session for a websocket connection
func (m *SessionManager) Create(conn *websocket.Conn) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	session := &Session{
		ID:        uuid.New().String(),
		Conn:      conn,
		CreatedAt: now,
		LastPing:  now,
	}

	m.sessions[session.ID] = session
	return session
}

// Get retrieves a session by ID
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	return session, ok
}

// Remove closes and forgets a session. Unknown ids are ignored.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.sessions[id]; ok {
		_ = session.Conn.Close()
		delete(m.sessions, id)
	}
}

// CloseAll closes and forgets every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, session := range m.sessions {
		_ = session.Conn.Close()
		delete(m.sessions, id)
	}
}

// Count returns the number of active sessions
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Broadcast sends a message to all sessions and drops the ones that fail.
// It returns the number of sessions that received the message.
func (m *SessionManager) Broadcast(message []byte) int {
	m.mu.RLock()
	var failed []string
	sent := 0
	for id, session := range m.sessions {
		if err := session.Send(message); err != nil {
			failed = append(failed, id)
			continue
		}
		sent++
	}
	m.mu.RUnlock()

	for _, id := range failed {
		m.Remove(id)
	}
	return sent
}

// Send writes a text message to this session
func (s *Session) Send(message []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return s.Conn.WriteMessage(websocket.TextMessage, message)
}

// UpdatePing updates the last ping time
func (s *Session) UpdatePing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastPing = time.Now()
}
