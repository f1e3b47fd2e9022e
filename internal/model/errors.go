package model

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a subsystem error
type ErrorKind int

const (
	// KindValidation is a rejected submission: unreachable, unparseable, or a playlist
	KindValidation ErrorKind = iota
	// KindExecution is a failed engine run
	KindExecution
	// KindDependency means the engine or a required tool is unavailable
	KindDependency
)

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindExecution:
		return "execution"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Error is a categorized error carrying the underlying cause
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error of the given kind
func NewError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// IsKind checks if err is, or wraps, an Error of one of the given kinds.
// With no kinds it matches any Error.
func IsKind(err error, kinds ...ErrorKind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}
