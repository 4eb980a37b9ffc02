package session

import (
	"sync"
	"time"

	"github.com/knowledge-chat/backend/internal/chat"
	"github.com/knowledge-chat/backend/internal/events"
	"github.com/knowledge-chat/backend/internal/models"
	"github.com/knowledge-chat/backend/internal/upload"
)

// MaxNotifications caps the toast history kept per session
const MaxNotifications = 50

// Session is the state of one open page: an upload view, a chat view and its toasts.
// The two flows are independent; the session only relays their changes to subscribers.
type Session struct {
	ID        string
	CreatedAt time.Time
	Upload    *upload.Flow
	Chat      *chat.Flow
	Events    *events.Broker

	mu            sync.Mutex
	lastAccessed  time.Time
	notifications []models.Notification
}

func newSession(id string, deps Deps) *Session {
	now := time.Now()
	s := &Session{
		ID:           id,
		CreatedAt:    now,
		Events:       events.NewBroker(),
		lastAccessed: now,
	}
	s.Upload = upload.NewFlow(deps.Timing, deps.Ingestor, s)
	s.Chat = chat.NewFlow(deps.Answerer, s)
	return s
}

// UploadChanged implements upload.Observer
func (s *Session) UploadChanged(v models.UploadView) {
	s.Events.Publish(events.Event{Type: events.TypeUpload, SessionID: s.ID, Payload: v})
}

// ChatChanged implements chat.Observer
func (s *Session) ChatChanged(v models.ChatView) {
	s.Events.Publish(events.Event{Type: events.TypeChat, SessionID: s.ID, Payload: v})
}

// Notify records a toast and pushes it
func (s *Session) Notify(n models.Notification) {
	s.mu.Lock()
	s.notifications = append(s.notifications, n)
	if len(s.notifications) > MaxNotifications {
		s.notifications = s.notifications[len(s.notifications)-MaxNotifications:]
	}
	s.mu.Unlock()

	s.Events.Publish(events.Event{Type: events.TypeToast, SessionID: s.ID, Payload: n})
}

// Notifications returns the toast history, oldest first
func (s *Session) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Touch marks the session as used now
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccessed = time.Now()
	s.mu.Unlock()
}

// LastAccessed returns when the session was last used
func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccessed
}

// Busy reports whether a request is still outstanding for this session
func (s *Session) Busy() bool {
	return s.Upload.View().Status == models.UploadStatusUploading || s.Chat.View().Waiting
}

// Snapshot returns the full render state
func (s *Session) Snapshot() models.SessionSnapshot {
	return models.SessionSnapshot{
		ID:            s.ID,
		Upload:        s.Upload.View(),
		Chat:          s.Chat.View(),
		Notifications: s.Notifications(),
		CreatedAt:     s.CreatedAt,
		LastAccessed:  s.LastAccessed(),
	}
}

// close ends all push subscriptions
func (s *Session) close() {
	s.Events.Close()
}
