package errors

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrNetwork             = errors.New("network error")
	ErrPersistence         = errors.New("persistence error")

	ErrAlreadyTracking  = errors.New("a delivery is already being tracked")
	ErrNoActiveDelivery = errors.New("no active delivery")

	ErrStopNotFound       = errors.New("stop not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidInput       = errors.New("invalid input data")
	ErrCaptureUnavailable = errors.New("capture unavailable")
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NetworkError describes a failed call to the remote delivery API. A zero
// StatusCode means the request never produced a response.
type NetworkError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": network error"
	}
}

func (e *NetworkError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrNetwork, e.Err}
	}
	return []error{ErrNetwork}
}

// PersistenceError wraps a local storage failure for the given key.
func PersistenceError(op, key string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrPersistence, op, key, err)
}
