// Package session keeps per-user rolling transcripts in process memory.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role of a transcript entry
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is one transcript line
type Entry struct {
	Role    Role
	Content string
}

// Session is the rolling conversation state of one user. The transcript is
// append-only; callers read it through Window.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time

	mu       sync.Mutex
	messages []Entry
}

// Window returns a copy of the last n transcript entries.
func (s *Session) Window(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := 0
	if n >= 0 && len(s.messages) > n {
		start = len(s.messages) - n
	}
	out := make([]Entry, len(s.messages)-start)
	copy(out, s.messages[start:])
	return out
}

// Len returns the full transcript length.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// AppendTurn records a completed exchange.
func (s *Session) AppendTurn(userText, assistantText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages,
		Entry{Role: RoleUser, Content: userText},
		Entry{Role: RoleAssistant, Content: assistantText},
	)
}

// ShortID returns the first 8 characters of the session id.
func (s *Session) ShortID() string {
	if len(s.ID) <= 8 {
		return s.ID
	}
	return s.ID[:8]
}

// Manager owns one Session per user id. There is no expiry; sessions live
// for the process lifetime and a reset discards the old one.
type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	newID    func() string
	now      func() time.Time
}

// NewManager creates an empty session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[int64]*Session),
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

// GetOrCreate returns the user's session, creating an empty one if needed.
func (m *Manager) GetOrCreate(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := m.create(userID)
	m.sessions[userID] = s
	return s
}

// Reset replaces the user's session with a fresh empty one.
func (m *Manager) Reset(userID int64) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.create(userID)
	m.sessions[userID] = s
	return s
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) create(userID int64) *Session {
	return &Session{
		ID:        m.newID(),
		UserID:    userID,
		CreatedAt: m.now(),
	}
}
