// Package apperr defines the error kinds shared by repositories, services
// and handlers.  Callers wrap a kind with context using fmt.Errorf("%w: ...")
// and higher layers classify with errors.Is.  Handlers translate each kind
// into an HTTP status; anything unclassified is an internal error.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrValidation marks malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized marks bad credentials or tokens.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks an action the caller's role does not allow.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks a resource that is absent or outside the caller's scope.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks a uniqueness or referential conflict.
	ErrConflict = errors.New("conflict")
)

// Validation wraps ErrValidation with a message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the resource name.
func NotFound(resource string) error {
	return fmt.Errorf("%w: %s not found", ErrNotFound, resource)
}

// Conflict wraps ErrConflict with a message.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Forbidden wraps ErrForbidden with a message.
func Forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

var kinds = []error{ErrValidation, ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict}

// Message returns the client-facing text of err: the detail following its
// kind, or the kind itself when no detail was attached.
func Message(err error) string {
	msg := err.Error()
	for _, k := range kinds {
		if !errors.Is(err, k) {
			continue
		}
		prefix := k.Error() + ": "
		if i := strings.Index(msg, prefix); i >= 0 {
			return msg[i+len(prefix):]
		}
		return k.Error()
	}
	return msg
}
