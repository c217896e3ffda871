// Package apperr defines the error kinds shared by every layer of the
// complaint service. Callers wrap them with fmt.Errorf("...: %w", err) and
// classify with errors.Is.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrPermissionDenied       = errors.New("permission denied")
	ErrInvalidTransition      = errors.New("invalid transition")
	ErrInvalidEnumValue       = errors.New("invalid enum value")
	ErrInvalidAssignee        = errors.New("invalid assignee")
	ErrEmptyBatch             = errors.New("empty batch")
	ErrNotFound               = errors.New("not found")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrNotificationFailed     = errors.New("notification failed")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrInvalidInput           = errors.New("invalid input")
)

var kinds = []error{
	ErrPermissionDenied, ErrInvalidTransition, ErrInvalidEnumValue,
	ErrInvalidAssignee, ErrEmptyBatch, ErrNotFound, ErrStoreUnavailable,
	ErrNotificationFailed, ErrConcurrentModification, ErrUnauthenticated,
	ErrInvalidInput,
}

// IsKind reports whether err already wraps one of the error kinds above.
func IsKind(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// HTTPStatus maps an error to the status code the API responds with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrInvalidEnumValue),
		errors.Is(err, ErrInvalidAssignee):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
