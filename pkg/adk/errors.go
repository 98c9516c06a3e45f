package adk

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNoSession is returned when a run is attempted before CreateSession.
	ErrNoSession = errors.New("adk: no session established")

	// ErrStreamClosed is returned when receiving from a closed stream.
	ErrStreamClosed = errors.New("adk: stream closed")
)

// APIError represents an error response from the reasoning service.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("adk: API error %d: %s", e.StatusCode, e.Message)
}

// IsServerError returns true for server-side failures (HTTP 5xx).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}
