package models

import (
	"time"

	"github.com/lib/pq"
)

// RequestStatus is the lifecycle state of a thumbnail request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusInProgress RequestStatus = "in_progress"
	StatusCompleted  RequestStatus = "completed"
	StatusRejected   RequestStatus = "rejected"
)

// AllStatuses lists every status a request can hold.
var AllStatuses = []RequestStatus{StatusPending, StatusInProgress, StatusCompleted, StatusRejected}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus converts user input into a RequestStatus.
func ParseStatus(raw string) (RequestStatus, error) {
	s := RequestStatus(raw)
	if !s.Valid() {
		return "", Invalid("status", "must be one of pending, in_progress, completed, rejected")
	}
	return s, nil
}

// FilterAll is the admin list filter that matches every status.
const FilterAll = "all"

// StatusFilter restricts an admin listing. The zero value matches everything.
type StatusFilter struct {
	Status RequestStatus
}

// ParseStatusFilter accepts "", "all" or any status name.
func ParseStatusFilter(raw string) (StatusFilter, error) {
	if raw == "" || raw == FilterAll {
		return StatusFilter{}, nil
	}
	s, err := ParseStatus(raw)
	if err != nil {
		return StatusFilter{}, Invalid("status", "filter must be all or a request status")
	}
	return StatusFilter{Status: s}, nil
}

// All reports whether the filter matches every status.
func (f StatusFilter) All() bool { return f.Status == "" }

// ThumbnailRequest is a row of the thumbnail_requests table.
type ThumbnailRequest struct {
	ID              string         `json:"id" db:"id"`
	UserID          string         `json:"user_id" db:"user_id"`
	Title           string         `json:"title" db:"title"`
	Description     *string        `json:"description" db:"description"`
	ReferenceURLs   pq.StringArray `json:"reference_urls" db:"reference_urls"`
	FaceReactionURL *string        `json:"face_reaction_url,omitempty" db:"face_reaction_url"`
	MainImageURL    *string        `json:"main_image_url,omitempty" db:"main_image_url"`
	Status          RequestStatus  `json:"status" db:"status"`
	ResultURL       *string        `json:"result_url" db:"result_url"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// AdminRequest is a request joined with the submitter's email for the admin view.
type AdminRequest struct {
	ThumbnailRequest
	UserEmail string `json:"user_email" db:"user_email"`
}

// NewRequest carries the fields needed to insert a request.
type NewRequest struct {
	UserID          string
	Title           string
	Description     *string
	ReferenceURLs   []string
	FaceReactionURL *string
	MainImageURL    *string
}
