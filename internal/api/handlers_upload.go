// handlers_upload.go - Knowledge-base upload view handlers
package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/knowledge-chat/backend/internal/models"
	"github.com/knowledge-chat/backend/internal/upload"
	"github.com/labstack/echo/v4"
)

// UploadHandlerImpl implements the UploadHandler interface
type UploadHandlerImpl struct {
	sessions SessionStore
	baseCtx  context.Context
}

// NewUploadHandler creates a new upload handler instance.
// Uploads outlive their request; baseCtx only ends them on shutdown.
func NewUploadHandler(sessions SessionStore, baseCtx context.Context) UploadHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &UploadHandlerImpl{
		sessions: sessions,
		baseCtx:  baseCtx,
	}
}

// HandleDrag applies a drag-enter/over/leave event to the drop zone
func (h *UploadHandlerImpl) HandleDrag(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}

	var req dragRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := applyDrag(s.Upload, req.Event); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Upload.View())
}

// HandleUploadFile accepts a file chosen with the file picker
func (h *UploadHandlerImpl) HandleUploadFile(c echo.Context) error {
	return h.startUpload(c, false)
}

// HandleDropFile accepts a file dropped onto the drop zone
func (h *UploadHandlerImpl) HandleDropFile(c echo.Context) error {
	return h.startUpload(c, true)
}

func (h *UploadHandlerImpl) startUpload(c echo.Context, dropped bool) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if dropped && errors.Is(err, http.ErrMissingFile) {
			// Dropping nothing still ends the drag.
			s.Upload.DragLeave()
			return c.NoContent(http.StatusNoContent)
		}
		return NewBadRequestError("no file provided", err)
	}

	data, err := readFormFile(fh)
	if err != nil {
		return NewInternalError("failed to read uploaded file", err)
	}
	file := upload.File{Name: fh.Filename, Data: data}

	if dropped {
		_, err = s.Upload.Drop(h.baseCtx, file)
	} else {
		_, err = s.Upload.StartFile(h.baseCtx, file)
	}
	if errors.Is(err, upload.ErrUploadInFlight) {
		return NewUploadInFlightError(err)
	}
	if err != nil {
		return NewInternalError("failed to start upload", err)
	}

	return c.JSON(http.StatusAccepted, s.Upload.View())
}

// HandleSetText stores the pasted-text draft
func (h *UploadHandlerImpl) HandleSetText(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}

	var req textRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	s.Upload.SetText(req.Text)
	return c.JSON(http.StatusOK, s.Upload.View())
}

// HandleSubmitText sends pasted text to the text ingestion webhook.
// Blank text is ignored with 204 and leaves the view untouched.
func (h *UploadHandlerImpl) HandleSubmitText(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}

	var req textRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.NoContent(http.StatusNoContent)
	}

	s.Upload.SetText(req.Text)
	outcome := s.Upload.SubmitText(context.WithoutCancel(c.Request().Context()), req.Text)

	return c.JSON(http.StatusOK, uploadResponse{
		Outcome: outcome,
		Upload:  s.Upload.View(),
	})
}

// HandleReset clears the completed file ("Upload Another File")
func (h *UploadHandlerImpl) HandleReset(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}
	if err := s.Upload.Reset(); err != nil {
		return NewUploadInFlightError(err)
	}
	return c.JSON(http.StatusOK, s.Upload.View())
}

// HandleGetUpload returns the upload view snapshot
func (h *UploadHandlerImpl) HandleGetUpload(c echo.Context) error {
	s, err := lookupSession(h.sessions, c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.Upload.View())
}

// Request/response types

type dragRequest struct {
	Event string `json:"event"` // "enter", "over", "leave"
}

type textRequest struct {
	Text string `json:"text"`
}

type uploadResponse struct {
	Outcome models.Outcome    `json:"outcome"`
	Upload  models.UploadView `json:"upload"`
}

// applyDrag maps a drag event name onto the flow
func applyDrag(flow *upload.Flow, event string) error {
	switch event {
	case "enter":
		flow.DragEnter()
	case "over":
		flow.DragOver()
	case "leave":
		flow.DragLeave()
	default:
		return NewValidationError("event")
	}
	return nil
}

// readFormFile loads the whole part into memory; the multipart temp file
// is removed once the request returns, before the webhook call runs.
func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return io.ReadAll(src)
}
