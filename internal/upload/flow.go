// Package upload implements the knowledge-base upload flow: the drag-and-drop target,
// file submission with a simulated progress bar, and pasted-text submission.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/knowledge-chat/backend/internal/models"
)

// ErrUploadInFlight is returned when a file is submitted while another is still uploading.
var ErrUploadInFlight = errors.New("an upload is already in progress")

// Ingestor sends content to the knowledge-base ingestion webhooks.
type Ingestor interface {
	SubmitFile(ctx context.Context, name string, r io.Reader) error
	SubmitText(ctx context.Context, text string) error
}

// Observer receives state snapshots and toasts. It is called with the flow locked,
// so it must not call back into the Flow.
type Observer interface {
	UploadChanged(view models.UploadView)
	Notify(n models.Notification)
}

// File is a file chosen by drag-and-drop or the picker.
type File struct {
	Name string
	Data []byte
}

// Result describes a finished file upload.
type Result struct {
	File    models.FileInfo
	Outcome models.Outcome
	Err     error // webhook error, nil when delivered
	Elapsed time.Duration
}

// Flow is the upload view state of one session.
type Flow struct {
	mu       sync.Mutex
	timing   Timing
	ingestor Ingestor
	observer Observer

	dragActive bool
	status     models.UploadStatus
	progress   float64
	current    *models.FileInfo
	completed  *models.FileInfo
	textDraft  string
}

// NewFlow creates an idle upload flow.
func NewFlow(timing Timing, ingestor Ingestor, observer Observer) *Flow {
	return &Flow{
		timing:   timing,
		ingestor: ingestor,
		observer: observer,
		status:   models.UploadStatusIdle,
	}
}

// View returns a snapshot of the current state.
func (f *Flow) View() models.UploadView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewLocked()
}

func (f *Flow) viewLocked() models.UploadView {
	v := models.UploadView{
		DragActive: f.dragActive,
		Status:     f.status,
		Progress:   f.progress,
		TextDraft:  f.textDraft,
	}
	if f.status == models.UploadStatusUploading {
		v.Stage = StageLabel(f.progress)
	}
	if f.current != nil {
		cur := *f.current
		v.CurrentFile = &cur
	}
	if f.completed != nil {
		done := *f.completed
		v.CompletedFile = &done
	}
	return v
}

func (f *Flow) publishLocked() {
	if f.observer != nil {
		f.observer.UploadChanged(f.viewLocked())
	}
}

func (f *Flow) notifyLocked(n models.Notification) {
	if f.observer != nil {
		f.observer.Notify(n)
	}
}

// DragEnter marks the drop zone active.
func (f *Flow) DragEnter() { f.setDragActive(true) }

// DragOver keeps the drop zone active.
func (f *Flow) DragOver() { f.setDragActive(true) }

// DragLeave clears the drop zone highlight.
func (f *Flow) DragLeave() { f.setDragActive(false) }

func (f *Flow) setDragActive(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dragActive == active {
		return
	}
	f.dragActive = active
	f.publishLocked()
}

// Drop clears the drag highlight and submits the dropped file through StartFile.
func (f *Flow) Drop(ctx context.Context, file File) (<-chan Result, error) {
	f.setDragActive(false)
	return f.StartFile(ctx, file)
}

// SubmitFile uploads a file and blocks until the view reports completion.
func (f *Flow) SubmitFile(ctx context.Context, file File) (Result, error) {
	done, err := f.StartFile(ctx, file)
	if err != nil {
		return Result{}, err
	}
	return <-done, nil
}

// StartFile enters the uploading state synchronously and runs the upload in the background.
// The returned channel receives exactly one Result.
func (f *Flow) StartFile(ctx context.Context, file File) (<-chan Result, error) {
	info := models.FileInfo{
		ID:   uuid.New().String(),
		Name: file.Name,
		Size: int64(len(file.Data)),
	}

	f.mu.Lock()
	if f.status == models.UploadStatusUploading {
		f.mu.Unlock()
		return nil, ErrUploadInFlight
	}
	f.status = models.UploadStatusUploading
	f.progress = 0
	f.current = &info
	f.publishLocked()
	f.mu.Unlock()

	done := make(chan Result, 1)
	go func() {
		done <- f.run(ctx, file, info)
	}()
	return done, nil
}

func (f *Flow) run(ctx context.Context, file File, info models.FileInfo) Result {
	start := time.Now()
	fmt.Printf("[Upload %s] Sending %s (%d bytes)\n", info.ID[:8], info.Name, info.Size)

	sim := StartSimulator(f.timing, f.setProgress)
	defer sim.Stop()

	err := f.ingestor.SubmitFile(ctx, file.Name, bytes.NewReader(file.Data))
	if err != nil {
		fmt.Printf("[Upload %s] Webhook failed: %v\n", info.ID[:8], err)
	}

	// Hold the bar until the floor has elapsed, however fast the webhook was.
	sleep(ctx, f.timing.MinDuration-time.Since(start))

	sim.Stop()
	f.mu.Lock()
	f.progress = 100
	f.publishLocked()
	f.mu.Unlock()

	sleep(ctx, f.timing.CompleteDelay)

	result := Result{Outcome: models.OutcomeDelivered, Err: err}
	info.UploadedAt = time.Now()
	info.Status = models.FileStatusUploaded
	if err != nil {
		result.Outcome = models.OutcomeFailed
		info.Status = models.FileStatusDegraded
	}

	f.mu.Lock()
	f.status = models.UploadStatusCompleted
	f.completed = &info
	f.current = nil
	f.publishLocked()
	if err != nil {
		f.notifyLocked(models.NewNotification(
			"Upload successful, webhook failed",
			fmt.Sprintf("%s uploaded but couldn't send to webhook.", info.Name),
			models.VariantDestructive,
		))
	} else {
		f.notifyLocked(models.NewNotification(
			"File uploaded successfully!",
			fmt.Sprintf("%s has been uploaded and sent to webhook.", info.Name),
			models.VariantDefault,
		))
	}
	f.mu.Unlock()

	result.File = info
	result.Elapsed = time.Since(start)
	fmt.Printf("[Upload %s] Completed in %s (%s)\n", info.ID[:8], result.Elapsed.Round(time.Millisecond), result.Outcome)
	return result
}

// setProgress is the simulator callback. Progress only moves forward while uploading.
func (f *Flow) setProgress(p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != models.UploadStatusUploading || p <= f.progress {
		return
	}
	f.progress = p
	f.publishLocked()
}

// Reset clears the completed file so another one can be chosen.
func (f *Flow) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == models.UploadStatusUploading {
		return ErrUploadInFlight
	}
	f.status = models.UploadStatusIdle
	f.progress = 0
	f.completed = nil
	f.publishLocked()
	return nil
}

// SetText updates the pasted-text input.
func (f *Flow) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textDraft = text
	f.publishLocked()
}

// SubmitText sends pasted text to the text ingestion webhook.
// Blank text is ignored. The input is cleared only when the webhook accepts it.
func (f *Flow) SubmitText(ctx context.Context, text string) models.Outcome {
	if strings.TrimSpace(text) == "" {
		return models.OutcomeSkipped
	}

	err := f.ingestor.SubmitText(ctx, text)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		fmt.Printf("[Upload] Text submission failed: %v\n", err)
		f.notifyLocked(models.NewNotification(
			"Submission failed",
			"Failed to send text content to webhook.",
			models.VariantDestructive,
		))
		return models.OutcomeFailed
	}

	f.textDraft = ""
	f.publishLocked()
	f.notifyLocked(models.NewNotification(
		"Text submitted successfully!",
		"Your knowledge base content has been processed.",
		models.VariantDefault,
	))
	return models.OutcomeDelivered
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
