package models

import "time"

const (
	EventRequestCreated   = "request.created"
	EventRequestCompleted = "request.completed"
)

// RequestEvent is published to the notification relay when a request is
// created or fulfilled.
type RequestEvent struct {
	Type          string    `json:"type"`
	RequestID     string    `json:"request_id"`
	UserID        string    `json:"user_id"`
	UserEmail     string    `json:"user_email,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	ReferenceURLs []string  `json:"reference_urls,omitempty"`
	ResultURL     string    `json:"result_url,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Email is a rendered message handed to a mailer.
type Email struct {
	To      []string
	Subject string
	HTML    string
}
