package models

import "time"

// Flow names the webhook a delivery was sent to.
type Flow string

const (
	FlowFile     Flow = "file"
	FlowText     Flow = "text"
	FlowQuestion Flow = "question"
)

// Delivery records one outbound webhook call.
type Delivery struct {
	Flow       Flow      `json:"flow"`
	StatusCode int       `json:"statusCode,omitempty"` // 0 when the request never got a response
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	At         time.Time `json:"at"`
}

// FlowStats aggregates deliveries for one flow.
type FlowStats struct {
	Flow          Flow    `json:"flow"`
	Total         int     `json:"total"`
	Succeeded     int     `json:"succeeded"`
	Failed        int     `json:"failed"`
	AvgDurationMs float64 `json:"avgDurationMs"`
}
