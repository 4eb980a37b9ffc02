package models

import "time"

// FileStatus reports how a completed upload ended.
type FileStatus string

const (
	FileStatusUploaded FileStatus = "uploaded"
	FileStatusDegraded FileStatus = "degraded" // completed, but the ingestion webhook failed
)

// FileInfo represents metadata about a file sent to the knowledge base.
type FileInfo struct {
	ID         string     `json:"id" msgpack:"id"`
	Name       string     `json:"name" msgpack:"name"`
	Size       int64      `json:"size" msgpack:"size"`
	UploadedAt time.Time  `json:"uploadedAt" msgpack:"uploadedAt"`
	Status     FileStatus `json:"status,omitempty" msgpack:"status,omitempty"`
}
