// Package apperr defines the typed failures returned by the event core.
package apperr

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Kind classifies a failure so transports can map it consistently.
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	KindConflict           Kind = "conflict"
	KindInvariantViolation Kind = "invariant_violation"
	KindInternal           Kind = "internal"
)

// Code narrows a Kind to a machine-readable reason.
type Code string

const (
	CodeAlreadyRegistered   Code = "ALREADY_REGISTERED"
	CodeCapacityExceeded    Code = "CAPACITY_EXCEEDED"
	CodeCapacityTooLow      Code = "CAPACITY_TOO_LOW"
	CodeAlreadyCollaborator Code = "ALREADY_COLLABORATOR"
	CodePINRequired         Code = "PIN_REQUIRED"
	CodePINMismatch         Code = "PIN_MISMATCH"
	CodePollClosed          Code = "POLL_CLOSED"
	CodeNotRegistered       Code = "NOT_REGISTERED"
	CodeEventClosed         Code = "EVENT_CLOSED"
)

// Error is a classified failure. Err, when set, is the underlying cause.
type Error struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or missing input.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing event, registration, task or poll.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Unauthorized reports a caller lacking the permission an operation needs.
func Unauthorized(format string, args ...any) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a well-formed request that cannot succeed in the current state.
func Conflict(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// InvariantViolation describes a cache found inconsistent with its source.
// It is logged and repaired, never returned to a caller.
func InvariantViolation(format string, args ...any) *Error {
	return &Error{Kind: KindInvariantViolation, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure, usually from storage.
func Internal(err error, msg string) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// WithCode returns a copy of e carrying code.
func (e *Error) WithCode(code Code) *Error {
	c := *e
	c.Code = code
	return &c
}

// KindOf returns the kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromValidation converts the result of an ozzo-validation rule set.
// Internal rule errors stay internal; field errors become a validation failure.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var internal validation.InternalError
	if errors.As(err, &internal) {
		return Internal(internal.InternalError(), "validation rule failed")
	}
	return &Error{Kind: KindValidation, Message: err.Error()}
}
