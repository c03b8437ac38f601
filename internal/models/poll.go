package models

import (
	"time"
)

// Poll is a multiple-choice question attached to an event.
type Poll struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	Question  string    `json:"question"`
	Options   []string  `json:"options"`
	Closed    bool      `json:"closed"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// PollAnswer is a user's choice on a poll; one per user per poll.
type PollAnswer struct {
	PollID     string    `json:"poll_id"`
	UserID     string    `json:"user_id"`
	Option     int       `json:"option"`
	AnsweredAt time.Time `json:"answered_at"`
}

// PollSummary counts answers per option.
type PollSummary struct {
	PollID   string   `json:"poll_id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Counts   []int    `json:"counts"`
	Total    int      `json:"total"`
	Closed   bool     `json:"closed"`
}
