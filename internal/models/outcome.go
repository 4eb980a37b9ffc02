package models

import (
	"time"

	"github.com/google/uuid"
)

// Outcome reports what a submission did.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"   // empty input, nothing sent
	OutcomeDelivered Outcome = "delivered" // webhook answered 2xx
	OutcomeFailed    Outcome = "failed"    // transport error or non-2xx
)

// NewNotification builds a toast stamped with a fresh ID.
func NewNotification(title, description string, variant NotificationVariant) Notification {
	return Notification{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Variant:     variant,
		CreatedAt:   time.Now(),
	}
}
