// Package access holds every authorization predicate used by the event core.
// Services ask the gate; they do not compare organizer ids or roles themselves.
package access

import (
	"crypto/subtle"
	"strings"

	"github.com/aura-events/backend/internal/apperr"
	"github.com/aura-events/backend/internal/models"
)

// Subject selects which PIN VerifyPIN compares against.
type Subject string

const (
	SubjectOrganizer Subject = "organizer"
	SubjectAttendee  Subject = "attendee"
)

// IsOrganizer reports whether userID owns the event.
func IsOrganizer(e *models.Event, userID string) bool {
	return e != nil && userID != "" && e.OrganizerID == userID
}

// IsCollaborator reports whether userID is in the event's collaborator set.
func IsCollaborator(e *models.Event, userID string) bool {
	if e == nil || userID == "" {
		return false
	}
	for _, c := range e.Collaborators {
		if c.UserID == userID {
			return true
		}
	}
	return false
}

// IsManager is organizer, collaborator or admin.
func IsManager(e *models.Event, c models.Caller) bool {
	return IsOrganizer(e, c.UserID) || IsCollaborator(e, c.UserID) || c.IsAdmin()
}

// CanEdit covers event metadata, deletion and permission grants.
func CanEdit(e *models.Event, c models.Caller) bool {
	return IsOrganizer(e, c.UserID) || c.IsAdmin()
}

// CanViewPINs is deliberately narrower than IsManager: admins that are not
// on the event do not see its PINs.
func CanViewPINs(e *models.Event, userID string) bool {
	return IsOrganizer(e, userID) || IsCollaborator(e, userID)
}

// CanUpdateTask allows managers and the task's assignee.
func CanUpdateTask(e *models.Event, t *models.Task, c models.Caller) bool {
	if IsManager(e, c) {
		return true
	}
	return t != nil && t.AssignedTo != "" && t.AssignedTo == c.UserID
}

// CanCancel allows the registrant and admins.
func CanCancel(r *models.Registration, c models.Caller) bool {
	return c.IsAdmin() || (r != nil && r.UserID == c.UserID)
}

// VerifyPIN compares pin with the event PIN for subject in constant time.
func VerifyPIN(e *models.Event, pin string, subject Subject) bool {
	if e == nil {
		return false
	}
	var want string
	switch subject {
	case SubjectOrganizer:
		want = e.OrganizerPIN
	case SubjectAttendee:
		want = e.AttendeePIN
	default:
		return false
	}
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(pin)), []byte(want)) == 1
}

// CheckRegistrationPIN applies the invite-only rule: open events need no PIN,
// invite-only events need the attendee PIN. It returns whether a PIN was used.
func CheckRegistrationPIN(e *models.Event, pin string) (bool, error) {
	if e.AccessType != models.AccessInviteOnly {
		return false, nil
	}
	if strings.TrimSpace(pin) == "" {
		return false, apperr.Validation("pin is required for invite-only events").WithCode(apperr.CodePINRequired)
	}
	if !VerifyPIN(e, pin, SubjectAttendee) {
		return false, apperr.Unauthorized("invalid pin").WithCode(apperr.CodePINMismatch)
	}
	return true, nil
}

// RequireManager fails Unauthorized unless c manages e.
func RequireManager(e *models.Event, c models.Caller) error {
	if !IsManager(e, c) {
		return apperr.Unauthorized("only the organizer, collaborators or an admin may do this")
	}
	return nil
}

// RequireEditor fails Unauthorized unless c is the organizer or an admin.
func RequireEditor(e *models.Event, c models.Caller) error {
	if !CanEdit(e, c) {
		return apperr.Unauthorized("only the organizer or an admin may do this")
	}
	return nil
}

// RequireOrganizer fails Unauthorized unless c owns e.
func RequireOrganizer(e *models.Event, c models.Caller) error {
	if !IsOrganizer(e, c.UserID) {
		return apperr.Unauthorized("only the organizer may do this")
	}
	return nil
}

// RequireCreator fails Unauthorized unless the role may create events.
func RequireCreator(c models.Caller) error {
	if c.Role != models.RoleOrganizer && c.Role != models.RoleAdmin {
		return apperr.Unauthorized("only organizers or admins may create events")
	}
	return nil
}

// RedactFor strips PINs unless the caller may see them.
func RedactFor(e *models.Event, userID string) *models.Event {
	if CanViewPINs(e, userID) {
		return e.Clone()
	}
	return e.Redacted()
}
