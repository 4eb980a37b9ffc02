// Package chat implements the question-and-answer transcript.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/knowledge-chat/backend/internal/models"
)

// ErrBusy is returned when a question is asked while the previous one is still waiting.
var ErrBusy = errors.New("still waiting for the previous answer")

// Answerer sends a question to the answering webhook.
type Answerer interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Observer receives state snapshots and toasts. It is called with the flow locked,
// so it must not call back into the Flow.
type Observer interface {
	ChatChanged(view models.ChatView)
	Notify(n models.Notification)
}

// PlaceholderAnswer is used when the service replies without an answer.
func PlaceholderAnswer(question string) string {
	return fmt.Sprintf("Question \"%s\" has been sent to the AI. Processing your knowledge base...", question)
}

// ApologyAnswer is used when the service could not be reached.
func ApologyAnswer(question string) string {
	return fmt.Sprintf("I received your question: \"%s\". However, there was an issue connecting to the AI service. Please try again.", question)
}

// Flow is the chat view state of one session.
type Flow struct {
	mu       sync.Mutex
	answerer Answerer
	observer Observer

	messages []models.ChatMessage
	nextID   int64
	draft    string
	waiting  bool
}

// NewFlow creates an empty transcript.
func NewFlow(answerer Answerer, observer Observer) *Flow {
	return &Flow{
		answerer: answerer,
		observer: observer,
		messages: make([]models.ChatMessage, 0, 16),
	}
}

// View returns a snapshot of the current state.
func (f *Flow) View() models.ChatView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

func (f *Flow) viewLocked() models.ChatView {
	msgs := make([]models.ChatMessage, len(f.messages))
	copy(msgs, f.messages)
	return models.ChatView{
		Messages: msgs,
		Draft:    f.draft,
		Waiting:  f.waiting,
	}
}

// Transcript returns the messages in creation order.
func (f *Flow) Transcript() []models.ChatMessage {
	return f.View().Messages
}

func (f *Flow) publishLocked() {
	if f.observer != nil {
		f.observer.ChatChanged(f.viewLocked())
	}
}

func (f *Flow) appendLocked(role models.Role, content string) models.ChatMessage {
	f.nextID++
	msg := models.ChatMessage{
		ID:        f.nextID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	f.messages = append(f.messages, msg)
	return msg
}

// SetDraft updates the question input.
func (f *Flow) SetDraft(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = text
	f.publishLocked()
}

// Send asks whatever is currently in the input.
func (f *Flow) Send(ctx context.Context) (models.Outcome, error) {
	f.mu.Lock()
	question := f.draft
	f.mu.Unlock()
	return f.Ask(ctx, question)
}

// KeyPress handles a key in the input. Enter sends; Shift+Enter never does.
func (f *Flow) KeyPress(ctx context.Context, key string, shift bool) (models.Outcome, error) {
	if key != "Enter" || shift {
		return models.OutcomeSkipped, nil
	}
	return f.Send(ctx)
}

// Ask appends the question, waits for the answering webhook and appends its reply.
// Blank questions are ignored. Webhook failures become a canned reply and a toast,
// never an error; the only error is ErrBusy.
func (f *Flow) Ask(ctx context.Context, question string) (models.Outcome, error) {
	if strings.TrimSpace(question) == "" {
		return models.OutcomeSkipped, nil
	}

	f.mu.Lock()
	if f.waiting {
		f.mu.Unlock()
		return models.OutcomeSkipped, ErrBusy
	}
	f.appendLocked(models.RoleUser, question)
	f.draft = ""
	f.waiting = true
	f.publishLocked()
	f.mu.Unlock()

	answer, err := f.answerer.Ask(ctx, question)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.waiting = false

	if err != nil {
		fmt.Printf("[Chat] Question failed: %v\n", err)
		f.appendLocked(models.RoleAssistant, ApologyAnswer(question))
		f.publishLocked()
		if f.observer != nil {
			f.observer.Notify(models.NewNotification(
				"Connection issue",
				"Failed to send question to AI service.",
				models.VariantDestructive,
			))
		}
		return models.OutcomeFailed, nil
	}

	if answer == "" {
		answer = PlaceholderAnswer(question)
	}
	f.appendLocked(models.RoleAssistant, answer)
	f.publishLocked()
	return models.OutcomeDelivered, nil
}
