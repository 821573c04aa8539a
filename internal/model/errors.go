package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup (node, search match) finds nothing.
	ErrNotFound = errors.New("not found")

	// ErrUserCancelled is returned when the user declines a confirmation.
	// It is a normal negative outcome, not a failure.
	ErrUserCancelled = errors.New("cancelled by user")
)

// DataIntegrityError reports a graph payload that cannot be drawn as is:
// missing nodes or links, dangling link endpoints, duplicate node ids.
type DataIntegrityError struct {
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return "data integrity: " + e.Reason
}

// NetworkError reports a failed backend request: a transport failure or a
// non-success response.
type NetworkError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	case e.Message != "":
		return e.Op + ": " + e.Message
	case e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + ": request failed"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is or wraps a *NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsDataIntegrity reports whether err is or wraps a *DataIntegrityError.
func IsDataIntegrity(err error) bool {
	var de *DataIntegrityError
	return errors.As(err, &de)
}
