package services

import (
	"errors"
	"fmt"
)

// NetworkError wraps a transport-level failure. Reads retry these with
// backoff; mutations surface them to the caller untouched.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError is a 401. It is never retried and must force re-authentication
// upstream.
type AuthError struct {
	Op string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication required", e.Op)
}

// ValidationError is a 4xx rejection carrying the server's user-facing
// message. Terminal for the request.
type ValidationError struct {
	Op      string
	Status  int
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: request rejected (status %d)", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ServerError is a 5xx. Reads retry it with backoff; mutations do not.
type ServerError struct {
	Op      string
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: server error (status %d)", e.Op, e.Status)
}

// ConflictError is the synchronous "busy" rejection, e.g. a second action on
// a match whose first action is still in flight. Never retried automatically.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// IsRetryable reports whether a failed read may be retried.
func IsRetryable(err error) bool {
	var netErr *NetworkError
	var srvErr *ServerError
	return errors.As(err, &netErr) || errors.As(err, &srvErr)
}
