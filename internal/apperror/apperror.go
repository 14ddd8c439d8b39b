// Package apperror defines the error taxonomy shared by every layer.
//
// ERROR KINDS:
//   - ErrNotFound        the row is gone (edits/deletes treat this as a no-op)
//   - ErrValidation      caller input was rejected before touching storage
//   - ErrConflict        a uniqueness rule would be broken
//   - ErrForbidden       the caller is signed in but not allowed
//   - ErrUnauthenticated nobody is signed in
//   - ErrStorage         the embedded engine failed; surfaced as a generic failure
//
// Each kind is a sentinel. Constructors return *AppError, which wraps the
// sentinel so errors.Is works through any number of fmt.Errorf("%w") layers.
// The HTTP layer maps kinds to status codes; nothing below it knows about HTTP.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrStorage         = errors.New("storage error")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // human-readable message
	Field   string // optional: input field at fault
	Cause   error  // optional: underlying engine error, never shown to users
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated is returned by user-scoped writes when no user is signed in.
func Unauthenticated() *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: "sign in required",
	}
}

// Storage wraps an engine failure. Op and cause are kept for logs only.
func Storage(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrStorage,
		Message: "storage error (" + op + ")",
		Cause:   cause,
	}
}

// Public returns the message that may be shown to a user. Storage failures
// collapse to a generic text so engine details never leak.
func Public(err error) string {
	var appErr *AppError
	switch {
	case errors.Is(err, ErrStorage):
		return "storage error"
	case errors.As(err, &appErr):
		return appErr.Message
	case err == nil:
		return ""
	default:
		return "an internal error occurred"
	}
}
