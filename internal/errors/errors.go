package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrUnrecognizedProtocol marks a listener the transport policy has no rule for.
	ErrUnrecognizedProtocol = stderrors.New("unrecognized protocol")
	// ErrCacheMiss is returned when neither the live panel nor the store had a line for a key.
	ErrCacheMiss = stderrors.New("no cached connection string")
	// ErrNotFound is returned by the store for missing rows.
	ErrNotFound = stderrors.New("not found")
	// ErrUnknownToken is returned for subscription tokens that match no user.
	ErrUnknownToken = stderrors.New("unknown subscription token")
	// ErrPassInProgress is returned when an on-demand pass finds another pass running.
	ErrPassInProgress = stderrors.New("reconciliation pass already in progress")
)

// HostUnreachableError represents a network or timeout failure talking to a panel
type HostUnreachableError struct {
	Host      string
	Operation string
	Err       error
}

// Error returns the error message
func (e *HostUnreachableError) Error() string {
	return fmt.Sprintf("host %s unreachable during %s: %v", e.Host, e.Operation, e.Err)
}

func (e *HostUnreachableError) Unwrap() error {
	return e.Err
}

// AuthError represents credentials rejected by a panel
type AuthError struct {
	Host    string
	Status  int
	Message string
}

// Error returns the error message
func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication rejected by host %s (status %d): %s", e.Host, e.Status, e.Message)
}

// RemoteRejectedError represents a panel refusing an operation
type RemoteRejectedError struct {
	Host      string
	Operation string
	Status    int
	Message   string
}

// Error returns the error message
func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("host %s rejected %s (status %d): %s", e.Host, e.Operation, e.Status, e.Message)
}

// ConfigError represents an error related to configuration
type ConfigError struct {
	Section string
	Message string
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Section, e.Message)
}

// Kind returns a short reporting label for an error.
func Kind(err error) string {
	var (
		unreachable *HostUnreachableError
		auth        *AuthError
		rejected    *RemoteRejectedError
	)
	switch {
	case err == nil:
		return "ok"
	case stderrors.As(err, &auth):
		return "auth_error"
	case stderrors.As(err, &rejected):
		return "rejected"
	case stderrors.As(err, &unreachable):
		return "unreachable"
	case stderrors.Is(err, ErrUnrecognizedProtocol):
		return "unrecognized_protocol"
	default:
		return "error"
	}
}

// IsAuth reports whether err is an AuthError
func IsAuth(err error) bool {
	var auth *AuthError
	return stderrors.As(err, &auth)
}

// IsUnreachable reports whether err is a HostUnreachableError
func IsUnreachable(err error) bool {
	var unreachable *HostUnreachableError
	return stderrors.As(err, &unreachable)
}
