// Package session keeps the per-page state of every open browser session in memory.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/knowledge-chat/backend/internal/chat"
	"github.com/knowledge-chat/backend/internal/upload"
)

// DefaultMaxSessions limits concurrent sessions to prevent memory exhaustion
const DefaultMaxSessions = 100

// ErrTooManySessions is returned when every slot is held by a busy session
var ErrTooManySessions = errors.New("too many active sessions")

// Deps are shared by every session the manager creates
type Deps struct {
	Ingestor upload.Ingestor
	Answerer chat.Answerer
	Timing   upload.Timing
}

// Manager handles active browser sessions.
type Manager struct {
	sessions    map[string]*Session
	mu          sync.RWMutex
	deps        Deps
	maxSessions int
}

// NewManager creates a new session manager.
func NewManager(deps Deps, maxSessions int) *Manager {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &Manager{
		sessions:    make(map[string]*Session),
		deps:        deps,
		maxSessions: maxSessions,
	}
}

// Create opens a new session. At the cap, the least recently used idle session is evicted.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= m.maxSessions {
		if !m.evictOldestIdleLocked() {
			return nil, ErrTooManySessions
		}
	}

	s := newSession(uuid.New().String(), m.deps)
	m.sessions[s.ID] = s
	fmt.Printf("[Session %s] Created (%d active)\n", s.ID[:8], len(m.sessions))
	return s, nil
}

func (m *Manager) evictOldestIdleLocked() bool {
	var oldest *Session
	for _, s := range m.sessions {
		if s.Busy() {
			continue
		}
		if oldest == nil || s.LastAccessed().Before(oldest.LastAccessed()) {
			oldest = s
		}
	}
	if oldest == nil {
		return false
	}
	delete(m.sessions, oldest.ID)
	oldest.close()
	fmt.Printf("[Session %s] Evicted to make room\n", oldest.ID[:8])
	return true
}

// Get retrieves a session by ID and marks it as accessed.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		s.Touch()
	}
	return s, ok
}

// Touch refreshes a session's last accessed time.
func (m *Manager) Touch(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Delete removes a session and closes its subscriptions.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		s.close()
	}
	return ok
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions removes idle sessions not accessed within maxAge.
// Sessions with an upload or question in flight are kept.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.LastAccessed().Before(cutoff) && !s.Busy() {
			delete(m.sessions, id)
			expired = append(expired, s)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		fmt.Printf("[Session] Cleaned up %d idle sessions\n", len(expired))
	}
	return len(expired)
}
