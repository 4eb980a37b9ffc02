// mock_webhook.go - In-memory webhook and observer fakes for testing
package testutil

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/knowledge-chat/backend/internal/models"
)

// MockWebhook implements the ingestion and answering interfaces for testing
type MockWebhook struct {
	mu sync.Mutex

	FileErr   error
	TextErr   error
	AskErr    error
	Answer    string
	Latency   time.Duration
	FileCalls int
	TextCalls int
	AskCalls  int
	Files     map[string][]byte
	Texts     []string
	Questions []string
}

// NewMockWebhook creates a mock that accepts everything instantly
func NewMockWebhook() *MockWebhook {
	return &MockWebhook{Files: make(map[string][]byte)}
}

func (m *MockWebhook) wait(ctx context.Context) error {
	if m.Latency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockWebhook) SubmitFile(ctx context.Context, name string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.FileCalls++
	m.Files[name] = data
	return m.FileErr
}

func (m *MockWebhook) SubmitText(ctx context.Context, text string) error {
	if err := m.wait(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.TextCalls++
	m.Texts = append(m.Texts, text)
	return m.TextErr
}

func (m *MockWebhook) Ask(ctx context.Context, question string) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.AskCalls++
	m.Questions = append(m.Questions, question)
	if m.AskErr != nil {
		return "", m.AskErr
	}
	return m.Answer, nil
}

// Calls returns the file, text and question call counts
func (m *MockWebhook) Calls() (file, text, ask int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FileCalls, m.TextCalls, m.AskCalls
}

// RecordingObserver collects every snapshot and toast a flow emits
type RecordingObserver struct {
	mu            sync.Mutex
	UploadViews   []models.UploadView
	ChatViews     []models.ChatView
	Notifications []models.Notification
}

func (o *RecordingObserver) UploadChanged(v models.UploadView) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.UploadViews = append(o.UploadViews, v)
}

func (o *RecordingObserver) ChatChanged(v models.ChatView) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ChatViews = append(o.ChatViews, v)
}

func (o *RecordingObserver) Notify(n models.Notification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Notifications = append(o.Notifications, n)
}

// Uploads returns a copy of the recorded upload snapshots
func (o *RecordingObserver) Uploads() []models.UploadView {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.UploadView(nil), o.UploadViews...)
}

// Chats returns a copy of the recorded chat snapshots
func (o *RecordingObserver) Chats() []models.ChatView {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ChatView(nil), o.ChatViews...)
}

// Toasts returns a copy of the recorded notifications
func (o *RecordingObserver) Toasts() []models.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.Notification(nil), o.Notifications...)
}
