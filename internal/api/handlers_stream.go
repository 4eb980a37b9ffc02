// handlers_stream.go - Server-Sent Events push of session state
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/knowledge-chat/backend/internal/events"
	"github.com/labstack/echo/v4"
)

// DefaultHeartbeat is the SSE comment interval that keeps idle connections open
const DefaultHeartbeat = 15 * time.Second

// StreamHandlerImpl implements the StreamHandler interface
type StreamHandlerImpl struct {
	sessions  SessionStore
	heartbeat time.Duration
}

// NewStreamHandler creates a new SSE handler
func NewStreamHandler(sessions SessionStore, heartbeat time.Duration) StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	return &StreamHandlerImpl{
		sessions:  sessions,
		heartbeat: heartbeat,
	}
}

// HandleEvents streams upload, chat and toast events of one session.
// The first event is always the full state snapshot.
func (h *StreamHandlerImpl) HandleEvents(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}

	ch, cancel := s.Events.Subscribe(events.DefaultBuffer)
	defer cancel()

	// Set SSE headers
	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	c.Response().WriteHeader(http.StatusOK)

	if err := writeSSE(c, events.Event{
		Type:      events.TypeState,
		SessionID: s.ID,
		Payload:   s.Snapshot(),
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		return nil
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				// Session closed
				return nil
			}
			if err := writeSSE(c, e); err != nil {
				return nil
			}
		case <-ticker.C:
			s.Touch()
			if _, err := fmt.Fprint(c.Response(), ": keepalive\n\n"); err != nil {
				return nil
			}
			c.Response().Flush()
		}
	}
}

func writeSSE(c echo.Context, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return err
	}
	c.Response().Flush()
	return nil
}
