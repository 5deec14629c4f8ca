package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the failure classes a generation can end in
type ErrorType string

const (
	// ErrorTypeAuth means no logged-in session was established within the login bound
	ErrorTypeAuth ErrorType = "auth"
	// ErrorTypeGeneration covers refusals, generation timeouts and download failures
	ErrorTypeGeneration ErrorType = "generation"
	// ErrorTypeBrowser covers an uninitialized session or an engine-level fault
	ErrorTypeBrowser ErrorType = "browser"
)

// Code returns the stable machine-readable code for the type
func (t ErrorType) Code() string {
	switch t {
	case ErrorTypeAuth:
		return "AUTH_ERROR"
	case ErrorTypeGeneration:
		return "GENERATION_ERROR"
	case ErrorTypeBrowser:
		return "BROWSER_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// Error is a typed failure with a human message and an optional cause
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the stable machine-readable code, e.g. "AUTH_ERROR"
func (e *Error) Code() string {
	return e.Type.Code()
}

// NewAuth creates an AUTH_ERROR
func NewAuth(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeAuth, Message: fmt.Sprintf(format, args...)}
}

// NewGeneration creates a GENERATION_ERROR
func NewGeneration(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeGeneration, Message: fmt.Sprintf(format, args...)}
}

// NewBrowser creates a BROWSER_ERROR
func NewBrowser(format string, args ...interface{}) *Error {
	return &Error{Type: ErrorTypeBrowser, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new typed error
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// TypeOf returns the type of the first *Error in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return "", false
}

// Is reports whether err's chain contains an *Error of type t
func Is(err error, t ErrorType) bool {
	got, ok := TypeOf(err)
	return ok && got == t
}
