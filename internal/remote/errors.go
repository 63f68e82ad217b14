package remote

import (
	"errors"
	"fmt"
)

// AuthError is returned when the credential is missing or rejected.
// It halts remote sync but never local operation.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Message
}

// TransportError covers an unreachable remote or any non-success response
// other than an authentication failure.
type TransportError struct {
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote request failed with status %d: %s", e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("remote unreachable: %v", e.Err)
	}
	return "remote request failed: " + e.Message
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError reports a payload the remote rejected as malformed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid payload: " + e.Message
}

// IsAuth reports whether err is, or wraps, an *AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
