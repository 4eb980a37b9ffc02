package models

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single transcript entry. It is never modified after creation.
type ChatMessage struct {
	ID        int64     `json:"id" msgpack:"id"` // increases with creation order within a transcript
	Role      Role      `json:"role" msgpack:"role"`
	Content   string    `json:"content" msgpack:"content"`
	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
}

// ChatView is the render state of the chat flow.
type ChatView struct {
	Messages []ChatMessage `json:"messages"`
	Draft    string        `json:"draft"`
	Waiting  bool          `json:"waiting"`
}
