package apperrors

import (
	"errors"
	"fmt"
)

// Standard application errors
var (
	// ErrInvalidInput is returned when the input provided by the client is invalid.
	ErrInvalidInput = errors.New("invalid input provided")

	// ErrExternalServiceFailure is returned when an interaction with an external service fails.
	ErrExternalServiceFailure = errors.New("external service interaction failed")

	// ErrRateLimited is returned when an upstream endpoint rejects a request with a rate-limit status.
	ErrRateLimited = errors.New("upstream rate limit exceeded")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("operation timed out")
)

// ArgumentError reports a rejected argument together with the offending value.
// It matches both its Kind and ErrInvalidInput under errors.Is.
type ArgumentError struct {
	Kind     error
	Argument string
	Value    any
}

// NewArgumentError creates an ArgumentError for the given argument name and value.
func NewArgumentError(kind error, argument string, value any) *ArgumentError {
	return &ArgumentError{Kind: kind, Argument: argument, Value: value}
}

func (e *ArgumentError) Error() string {
	msg := "invalid argument"
	if e.Kind != nil {
		msg = e.Kind.Error()
	}
	if s, ok := e.Value.(string); ok {
		return fmt.Sprintf("%s (argument=%q, value=%q)", msg, e.Argument, s)
	}
	return fmt.Sprintf("%s (argument=%q, value=%v)", msg, e.Argument, e.Value)
}

func (e *ArgumentError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrInvalidInput}
	}
	return []error{e.Kind, ErrInvalidInput}
}
