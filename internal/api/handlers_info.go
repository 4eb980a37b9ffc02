// handlers_info.go - Static page content and client configuration
package api

import (
	"net/http"
	"strings"

	"github.com/knowledge-chat/backend/internal/guide"
	"github.com/labstack/echo/v4"
)

// ClientConfig is what the page needs to render the upload view.
// Accepted file types only set the picker filter; the server never enforces them.
type ClientConfig struct {
	AcceptedFileTypes []string `json:"acceptedFileTypes"`
	Accept            string   `json:"accept"` // picker filter, e.g. ".pdf,.txt"
	MinUploadMs       int64    `json:"minUploadMs"`
	CompleteDelayMs   int64    `json:"completeDelayMs"`
	Version           string   `json:"version"`
}

// InfoHandlerImpl implements the InfoHandler interface
type InfoHandlerImpl struct {
	guide  *guide.Guide
	client ClientConfig
}

// NewInfoHandler creates a new info handler
func NewInfoHandler(g *guide.Guide, client ClientConfig) InfoHandler {
	client.Accept = strings.Join(client.AcceptedFileTypes, ",")
	return &InfoHandlerImpl{
		guide:  g,
		client: client,
	}
}

// HandleGuide returns the "How to Use" content
func (h *InfoHandlerImpl) HandleGuide(c echo.Context) error {
	if h.guide == nil {
		return NewServiceUnavailableError("guide not loaded")
	}
	return c.JSON(http.StatusOK, h.guide)
}

// HandleClientConfig returns accepted file types and upload timing
func (h *InfoHandlerImpl) HandleClientConfig(c echo.Context) error {
	return c.JSON(http.StatusOK, h.client)
}
