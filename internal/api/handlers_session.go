// handlers_session.go - Browser session handlers
package api

import (
	"errors"
	"net/http"

	"github.com/knowledge-chat/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions      SessionStore
	allowDeletion bool
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions SessionStore, allowDeletion bool) SessionHandler {
	return &SessionHandlerImpl{
		sessions:      sessions,
		allowDeletion: allowDeletion,
	}
}

// HandleCreateSession opens a fresh session for a page load
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	s, err := h.sessions.Create()
	if errors.Is(err, session.ErrTooManySessions) {
		return NewServiceUnavailableError(err.Error())
	}
	if err != nil {
		return NewInternalError("failed to create session", err)
	}
	return c.JSON(http.StatusCreated, s.Snapshot())
}

// HandleGetSession returns the full render state of a session
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Snapshot())
}

// HandleDeleteSession closes a session when the page is unloaded
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	if !h.allowDeletion {
		return NewDeletionDisabledError()
	}
	id := c.Param("id")
	if !h.sessions.Delete(id) {
		return NewNotFoundError("session", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSessionKeepAlive refreshes a session's last accessed time
func (h *SessionHandlerImpl) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.Touch(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleGetNotifications returns the toast history of a session
func (h *SessionHandlerImpl) HandleGetNotifications(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Notifications())
}

// lookupSession resolves the :id path parameter
func lookupSession(sessions SessionStore, c echo.Context) (*session.Session, error) {
	id := c.Param("id")
	if id == "" {
		return nil, NewValidationError("id")
	}
	s, ok := sessions.Get(id)
	if !ok {
		return nil, NewNotFoundError("session", id)
	}
	return s, nil
}
