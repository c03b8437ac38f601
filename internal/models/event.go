package models

import (
	"time"
)

// AccessType controls who may register for an event.
type AccessType string

const (
	AccessOpen       AccessType = "open"
	AccessInviteOnly AccessType = "invite-only"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "upcoming"
	EventOngoing   EventStatus = "ongoing"
	EventCompleted EventStatus = "completed"
	EventCancelled EventStatus = "cancelled"
)

// Permission is an access level granted on a single event.
type Permission string

const (
	PermissionView   Permission = "view"
	PermissionEdit   Permission = "edit"
	PermissionManage Permission = "manage"
)

// DefaultCapacity is used when an event is created without a capacity.
const DefaultCapacity = 100

// DateLayout is the only accepted wire format for event dates.
const DateLayout = "2006-01-02"

// Collaborator is a user with management rights on an event.
type Collaborator struct {
	UserID  string    `json:"user_id"`
	AddedAt time.Time `json:"added_at"`
}

// AccessPermission grants a user a permission on an event; one entry per user.
type AccessPermission struct {
	UserID     string     `json:"user_id"`
	Permission Permission `json:"permission"`
	GrantedAt  time.Time  `json:"granted_at"`
}

// Event is the aggregate root. Tasks, the budget ledger, collaborators and
// permissions are owned by it and persisted with it.
type Event struct {
	ID                string             `json:"id"`
	Code              string             `json:"event_code"`
	OrganizerID       string             `json:"organizer_id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Date              time.Time          `json:"date"`
	Time              string             `json:"time"`
	Venue             string             `json:"venue"`
	EventType         string             `json:"event_type"`
	Area              string             `json:"area"`
	Image             string             `json:"image,omitempty"`
	MP4Video          string             `json:"mp4_video,omitempty"`
	M4Audio           string             `json:"m4_audio,omitempty"`
	AccessType        AccessType         `json:"access_type"`
	OrganizerPIN      string             `json:"organizer_pin,omitempty"`
	AttendeePIN       string             `json:"attendee_pin,omitempty"`
	Capacity          int                `json:"capacity"`
	RegisteredCount   int                `json:"registered_count"`
	AttendingCount    int                `json:"attending_count"`
	Budget            Budget             `json:"budget"`
	Tasks             []Task             `json:"tasks"`
	Collaborators     []Collaborator     `json:"collaborators"`
	AccessPermissions []AccessPermission `json:"access_permissions"`
	Status            EventStatus        `json:"status"`
	Version           int64              `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// TaskByID returns a pointer into e.Tasks, or nil.
func (e *Event) TaskByID(id string) *Task {
	for i := range e.Tasks {
		if e.Tasks[i].ID == id {
			return &e.Tasks[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the aggregate.
func (e *Event) Clone() *Event {
	c := *e
	c.Budget.Expenses = append([]Expense(nil), e.Budget.Expenses...)
	c.Tasks = make([]Task, len(e.Tasks))
	for i, t := range e.Tasks {
		c.Tasks[i] = t.clone()
	}
	c.Collaborators = append([]Collaborator(nil), e.Collaborators...)
	c.AccessPermissions = append([]AccessPermission(nil), e.AccessPermissions...)
	return &c
}

// Normalize replaces nil child collections with empty ones so that they
// serialize as [] rather than null.
func (e *Event) Normalize() {
	if e.Tasks == nil {
		e.Tasks = []Task{}
	}
	if e.Budget.Expenses == nil {
		e.Budget.Expenses = []Expense{}
	}
	if e.Collaborators == nil {
		e.Collaborators = []Collaborator{}
	}
	if e.AccessPermissions == nil {
		e.AccessPermissions = []AccessPermission{}
	}
}

// Redacted returns a copy without the organizer and attendee PINs.
func (e *Event) Redacted() *Event {
	c := e.Clone()
	c.OrganizerPIN = ""
	c.AttendeePIN = ""
	return c
}

// EventSummary is the denormalized view attached to registration listings.
type EventSummary struct {
	ID         string      `json:"id"`
	Code       string      `json:"event_code"`
	Title      string      `json:"title"`
	Date       time.Time   `json:"date"`
	Time       string      `json:"time"`
	Venue      string      `json:"venue"`
	EventType  string      `json:"event_type"`
	Area       string      `json:"area"`
	Image      string      `json:"image,omitempty"`
	AccessType AccessType  `json:"access_type"`
	Status     EventStatus `json:"status"`
}

// Summary builds the listing view of e.
func (e *Event) Summary() EventSummary {
	return EventSummary{
		ID:         e.ID,
		Code:       e.Code,
		Title:      e.Title,
		Date:       e.Date,
		Time:       e.Time,
		Venue:      e.Venue,
		EventType:  e.EventType,
		Area:       e.Area,
		Image:      e.Image,
		AccessType: e.AccessType,
		Status:     e.Status,
	}
}
