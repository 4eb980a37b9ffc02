package models

// UploadStatus is the state of the upload drop zone.
type UploadStatus string

const (
	UploadStatusIdle      UploadStatus = "idle"
	UploadStatusUploading UploadStatus = "uploading"
	UploadStatusCompleted UploadStatus = "completed"
)

// UploadView is the render state of the upload flow.
type UploadView struct {
	DragActive    bool         `json:"dragActive"`
	Status        UploadStatus `json:"status"`
	Progress      float64      `json:"progress"` // 0-100, animation only
	Stage         string       `json:"stage,omitempty"`
	CurrentFile   *FileInfo    `json:"currentFile,omitempty"`
	CompletedFile *FileInfo    `json:"completedFile,omitempty"`
	TextDraft     string       `json:"textDraft"`
}
