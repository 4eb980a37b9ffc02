package models

import "time"

// SessionSnapshot is the full render state of one browser session.
type SessionSnapshot struct {
	ID            string         `json:"id"`
	Upload        UploadView     `json:"upload"`
	Chat          ChatView       `json:"chat"`
	Notifications []Notification `json:"notifications"`
	CreatedAt     time.Time      `json:"createdAt"`
	LastAccessed  time.Time      `json:"lastAccessed"`
}
