package chat

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error. Kinds are stable strings so they survive
// JSON round trips between modules and reach clients unchanged.
type Kind string

// Error kinds.
const (
	KindValidation           Kind = "validation_error"
	KindNotAMember           Kind = "not_a_member"
	KindAlreadyBound         Kind = "already_bound"
	KindNotFound             Kind = "not_found"
	KindPersistenceFailed    Kind = "persistence_failed"
	KindAttachmentUnresolved Kind = "attachment_unresolved"
)

// Error is a classified domain error.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel errors, one per kind.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrNotAMember           = &Error{Kind: KindNotAMember}
	ErrAlreadyBound         = &Error{Kind: KindAlreadyBound}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrPersistenceFailed    = &Error{Kind: KindPersistenceFailed}
	ErrAttachmentUnresolved = &Error{Kind: KindAttachmentUnresolved}
)

// NewError creates a domain error of the given kind.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Validation returns a validation_error.
func Validation(format string, args ...any) *Error {
	return NewError(KindValidation, format, args...)
}

// NotAMember returns a not_a_member error.
func NotAMember(format string, args ...any) *Error {
	return NewError(KindNotAMember, format, args...)
}

// NotFound returns a not_found error.
func NotFound(format string, args ...any) *Error {
	return NewError(KindNotFound, format, args...)
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError returns err as a domain error when it is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
