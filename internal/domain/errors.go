package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEmptyQuery signals a search with nothing to search for.
	ErrEmptyQuery = errors.New("empty query")
	// ErrInvalidQuery signals a malformed search query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidMode signals an unknown display mode.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrInvalidDirection signals an unknown reorder direction.
	ErrInvalidDirection = errors.New("invalid direction")
	// ErrAlreadySelected signals that the keyframe is already in the selection list.
	ErrAlreadySelected = errors.New("already selected")
	// ErrConfirmationRequired signals a destructive action issued without confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrBackendUnavailable signals a failed call to the remote search API.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrInvalidFilename signals an unusable export file name.
	ErrInvalidFilename = errors.New("invalid file name")
)

// StatusError is a non-2xx answer from the remote search API.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s returned HTTP %d", ErrBackendUnavailable.Error(), e.Endpoint, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrBackendUnavailable }

// NewStatusError creates a StatusError.
func NewStatusError(endpoint string, status int) error {
	return &StatusError{Endpoint: endpoint, StatusCode: status}
}
