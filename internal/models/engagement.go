package models

import (
	"time"
)

// Attendance records that a registered user showed up.
type Attendance struct {
	EventID  string    `json:"event_id"`
	UserID   string    `json:"user_id"`
	MarkedBy string    `json:"marked_by"`
	MarkedAt time.Time `json:"marked_at"`
}

// Feedback is a post-event rating; one per user per event.
type Feedback struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FeedbackSummary aggregates feedback for an event.
type FeedbackSummary struct {
	Count         int     `json:"count"`
	AverageRating float64 `json:"average_rating"`
}

// Notification asks the messaging collaborator to reach a list of users.
type Notification struct {
	EventID    string   `json:"event_id"`
	Kind       string   `json:"kind"`
	Subject    string   `json:"subject"`
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

// Notification kinds.
const (
	NotifyEventUpdated   = "event_updated"
	NotifyEventCancelled = "event_cancelled"
	NotifyAnnouncement   = "announcement"
)
