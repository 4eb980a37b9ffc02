// handlers_chat.go - Question/answer transcript handlers
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/knowledge-chat/backend/internal/chat"
	"github.com/knowledge-chat/backend/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// ChatHandlerImpl implements the ChatHandler interface
type ChatHandlerImpl struct {
	sessions SessionStore
}

// NewChatHandler creates a new chat handler
func NewChatHandler(sessions SessionStore) ChatHandler {
	return &ChatHandlerImpl{sessions: sessions}
}

// HandleAsk sends a question and waits for the assistant reply.
// Blank questions are ignored with 204; a question while one is pending gets 409.
func (h *ChatHandlerImpl) HandleAsk(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}

	var req askRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if strings.TrimSpace(req.Question) == "" {
		return c.NoContent(http.StatusNoContent)
	}

	outcome, err := s.Chat.Ask(context.WithoutCancel(c.Request().Context()), req.Question)
	return h.respond(c, s.Chat, outcome, err)
}

// HandleSetDraft stores the chat input text
func (h *ChatHandlerImpl) HandleSetDraft(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}

	var req textRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	s.Chat.SetDraft(req.Text)
	return c.JSON(http.StatusOK, s.Chat.View())
}

// HandleKeyPress applies a key press to the chat input. Enter sends the draft,
// Shift+Enter never does.
func (h *ChatHandlerImpl) HandleKeyPress(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}

	var req keyRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Key == "" {
		return NewValidationError("key")
	}

	outcome, err := s.Chat.KeyPress(context.WithoutCancel(c.Request().Context()), req.Key, req.Shift)
	return h.respond(c, s.Chat, outcome, err)
}

func (h *ChatHandlerImpl) respond(c echo.Context, flow *chat.Flow, outcome models.Outcome, err error) error {
	if errors.Is(err, chat.ErrBusy) {
		return NewChatBusyError(err)
	}
	if err != nil {
		return NewInternalError("failed to send question", err)
	}
	if outcome == models.OutcomeSkipped {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, chatResponse{
		Outcome: outcome,
		Chat:    flow.View(),
	})
}

// HandleTranscript returns the messages in creation order
func (h *ChatHandlerImpl) HandleTranscript(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}
	msgs := s.Chat.Transcript()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessionId": s.ID,
		"messages":  msgs,
		"count":     len(msgs),
	})
}

// HandleTranscriptMsgpack returns the transcript as MessagePack
func (h *ChatHandlerImpl) HandleTranscriptMsgpack(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}
	msgs := s.Chat.Transcript()

	data, err := msgpack.Marshal(transcriptExport{
		SessionID: s.ID,
		Messages:  msgs,
		Count:     len(msgs),
	})
	if err != nil {
		return NewInternalError("failed to encode transcript", err)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

// Request/response types

type askRequest struct {
	Question string `json:"question"`
}

type keyRequest struct {
	Key   string `json:"key"`
	Shift bool   `json:"shift"`
}

type chatResponse struct {
	Outcome models.Outcome  `json:"outcome"`
	Chat    models.ChatView `json:"chat"`
}

type transcriptExport struct {
	SessionID string               `msgpack:"sessionId"`
	Messages  []models.ChatMessage `msgpack:"messages"`
	Count     int                  `msgpack:"count"`
}
