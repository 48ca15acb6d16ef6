// Package errors provides custom error types for the asset sync pipeline.
// These errors enable programmatic error checking and let the run loop
// distinguish fatal failures from per-record conditions that are
// accumulated into the run summary.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is and As are aliases for the standard library equivalents so callers
// only import one errors package.
var (
	Is = errors.Is
	As = errors.As
)

// Common sentinel errors for the pipeline
var (
	// ErrConnection indicates the operational store or the remote service
	// is unreachable. Fatal: the run transitions to FAILED.
	ErrConnection = errors.New("connection failed")

	// ErrQuery indicates a malformed extraction request. Fatal.
	ErrQuery = errors.New("query failed")

	// ErrDegenerateGeometry indicates a record geometry that is null,
	// empty, or has no spatial extent. Per-record: recorded and skipped.
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// ErrAuthExpired indicates the remote session token expired mid-run.
	// Triggers a single re-authentication and retry.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrAuthRejected indicates the remote service permanently rejected
	// the credentials. Fatal.
	ErrAuthRejected = errors.New("authentication rejected")

	// ErrRemoteValidation indicates the remote service rejected a payload.
	// Per-operation: recorded as a publish failure, never retried.
	ErrRemoteValidation = errors.New("remote validation failed")

	// ErrTransient indicates a retryable network-level failure
	// (timeout, 5xx). Escalates to a recorded failure after bounded retries.
	ErrTransient = errors.New("transient network error")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")
)

// ConnectionError represents a failure to reach the operational store
// or the remote feature service.
type ConnectionError struct {
	Target string // "postgres", "feature-service"
	Host   string
	Err    error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e.Host != "" {
		return fmt.Sprintf("cannot connect to %s at %s: %v", e.Target, e.Host, e.Err)
	}
	return fmt.Sprintf("cannot connect to %s: %v", e.Target, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *ConnectionError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// QueryError represents a malformed or failed extraction query.
type QueryError struct {
	Table string
	Query string
	Err   error
}

// Error implements the error interface
func (e *QueryError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("extraction query against %s failed: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("extraction query failed: %v", e.Err)
}

// Unwrap implements errors.Unwrap
func (e *QueryError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *QueryError) Is(target error) bool { return target == ErrQuery }

// DegenerateGeometryError represents a record whose geometry cannot yield
// a representative point.
type DegenerateGeometryError struct {
	RecordID string
	Reason   string // "nil", "empty", "zero extent"
}

// Error implements the error interface
func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("record %s has degenerate geometry: %s", e.RecordID, e.Reason)
}

// Is implements errors.Is support
func (e *DegenerateGeometryError) Is(target error) bool {
	return target == ErrDegenerateGeometry
}

// AuthError represents an authentication failure against the remote
// feature service. Expired distinguishes a mid-run token expiry (retryable
// once) from a permanent credential rejection (fatal).
type AuthError struct {
	Host    string
	Expired bool
	Message string
	Err     error
}

// Error implements the error interface
func (e *AuthError) Error() string {
	kind := "rejected"
	if e.Expired {
		kind = "expired"
	}
	if e.Message != "" {
		return fmt.Sprintf("authentication %s for %s: %s", kind, e.Host, e.Message)
	}
	return fmt.Sprintf("authentication %s for %s", kind, e.Host)
}

// Unwrap implements errors.Unwrap
func (e *AuthError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *AuthError) Is(target error) bool {
	if e.Expired {
		return target == ErrAuthExpired
	}
	return target == ErrAuthRejected
}

// RemoteValidationError represents a payload the remote service refused.
type RemoteValidationError struct {
	RecordID string
	Code     int
	Message  string
}

// Error implements the error interface
func (e *RemoteValidationError) Error() string {
	return fmt.Sprintf("remote service rejected record %s (code %d): %s", e.RecordID, e.Code, e.Message)
}

// Is implements errors.Is support
func (e *RemoteValidationError) Is(target error) bool {
	return target == ErrRemoteValidation
}

// TransientError represents a retryable network-level failure.
type TransientError struct {
	StatusCode int
	Attempts   int
	Err        error
}

// Error implements the error interface
func (e *TransientError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("transient error after %d attempts (status %d): %v", e.Attempts, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transient error (status %d): %v", e.StatusCode, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *TransientError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error { return e.Err }

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create"
	Path      string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	return fmt.Sprintf("IO error during %s of %s: %v", e.Operation, e.Path, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error { return e.Err }

// Helper functions for error checking

// IsConnection checks if an error indicates an unreachable store or service
func IsConnection(err error) bool { return errors.Is(err, ErrConnection) }

// IsQuery checks if an error is a malformed extraction request
func IsQuery(err error) bool { return errors.Is(err, ErrQuery) }

// IsDegenerateGeometry checks if an error is a per-record geometry failure
func IsDegenerateGeometry(err error) bool { return errors.Is(err, ErrDegenerateGeometry) }

// IsAuthExpired checks if an error is a mid-run token expiry
func IsAuthExpired(err error) bool { return errors.Is(err, ErrAuthExpired) }

// IsAuthRejected checks if an error is a permanent credential rejection
func IsAuthRejected(err error) bool { return errors.Is(err, ErrAuthRejected) }

// IsRemoteValidation checks if an error is a non-retryable payload rejection
func IsRemoteValidation(err error) bool { return errors.Is(err, ErrRemoteValidation) }

// IsTransient checks if an error is retryable at the network level
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }

// Helper wrapping functions for common patterns

// WrapConnection wraps an error as a ConnectionError
func WrapConnection(target, host string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Target: target, Host: host, Err: err}
}

// WrapQuery wraps an error as a QueryError
func WrapQuery(table string, err error) error {
	if err == nil {
		return nil
	}
	return &QueryError{Table: table, Err: err}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Operation: operation, Path: path, Err: err}
}
