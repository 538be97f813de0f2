package dto

import (
	"time"

	"github.com/google/uuid"
)

// WelcomeEmailEvent is the payload published to the welcome-email topic.
type WelcomeEmailEvent struct {
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	BatchStart int       `json:"batch_start"`
	BatchEnd   int       `json:"batch_end"`
	ApprovedBy string    `json:"approved_by"`
	ApprovedAt time.Time `json:"approved_at"`
}

const (
	EventApplicationCreated  = "application.created"
	EventApplicationApproved = "application.approved"
	EventApplicationRejected = "application.rejected"
)

// FeedEvent is pushed to admins watching the applications dashboard.
type FeedEvent struct {
	Type          string    `json:"type"`
	ApplicationID uuid.UUID `json:"application_id"`
	FullName      string    `json:"full_name,omitempty"`
	Email         string    `json:"email,omitempty"`
	Batch         string    `json:"batch,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
