// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/knowledge-chat/backend/internal/models"
	"github.com/knowledge-chat/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionHandler handles browser session lifecycle
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSessionKeepAlive(c echo.Context) error
	HandleGetNotifications(c echo.Context) error
}

// UploadHandler handles the knowledge-base upload view
type UploadHandler interface {
	HandleDrag(c echo.Context) error
	HandleUploadFile(c echo.Context) error
	HandleDropFile(c echo.Context) error
	HandleSetText(c echo.Context) error
	HandleSubmitText(c echo.Context) error
	HandleReset(c echo.Context) error
	HandleGetUpload(c echo.Context) error
}

// ChatHandler handles the question/answer transcript
type ChatHandler interface {
	HandleAsk(c echo.Context) error
	HandleSetDraft(c echo.Context) error
	HandleKeyPress(c echo.Context) error
	HandleTranscript(c echo.Context) error
	HandleTranscriptMsgpack(c echo.Context) error
}

// StreamHandler pushes session events over Server-Sent Events
type StreamHandler interface {
	HandleEvents(c echo.Context) error
}

// InfoHandler serves static page content and client configuration
type InfoHandler interface {
	HandleGuide(c echo.Context) error
	HandleClientConfig(c echo.Context) error
}

// DeliveryHandler exposes the webhook delivery log
type DeliveryHandler interface {
	HandleStats(c echo.Context) error
	HandleRecent(c echo.Context) error
}

// SessionStore defines the interface for session management
// This allows mocking in tests
type SessionStore interface {
	Create() (*session.Session, error)
	Get(id string) (*session.Session, bool)
	Touch(id string) bool
	Delete(id string) bool
	Count() int
}

// DeliveryLog is the read side of the webhook delivery log
type DeliveryLog interface {
	Stats(ctx context.Context) ([]models.FlowStats, error)
	Recent(ctx context.Context, limit int) ([]models.Delivery, error)
}
