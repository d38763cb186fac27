package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType classifies pipeline failures so callers can decide retry vs
// abort and map the failure to a stable exit code.
type ErrorType string

const (
	// Session errors: the browser session could not be opened or driven.
	ErrorTypeNavigation  ErrorType = "navigation"  // page load timed out or failed
	ErrorTypeAuth        ErrorType = "auth"        // session cookie invalid or expired
	ErrorTypeUnreachable ErrorType = "unreachable" // profile private, blocked, or not found

	ErrorTypeParsing ErrorType = "parsing" // snapshot structure unrecognized
	ErrorTypeIO      ErrorType = "io"      // destination unwritable
	ErrorTypeConfig  ErrorType = "config"  // invalid run parameters
	ErrorTypeNetwork ErrorType = "network" // transient transport failure
	ErrorTypeUnknown ErrorType = "unknown"
)

// Exit codes surfaced to scripting consumers. Distinct per failure kind.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitConfig  = 2
	ExitSession = 3
	ExitIO      = 4
)

// Error is a classified pipeline error.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error.
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(t ErrorType, message string, err error) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown if err is
// not a classified error.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsSession reports whether err is one of the session error variants.
func IsSession(err error) bool {
	switch TypeOf(err) {
	case ErrorTypeNavigation, ErrorTypeAuth, ErrorTypeUnreachable:
		return true
	}
	return false
}

// IsRetryable reports whether an error of this type is worth retrying.
// Auth and unreachable failures will not change on retry; navigation and
// network failures might.
func IsRetryable(t ErrorType) bool {
	switch t {
	case ErrorTypeNavigation, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// ExitCode maps err to the process exit code. A nil error is a successful
// run, including the fewer-posts-than-requested case.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch TypeOf(err) {
	case ErrorTypeConfig:
		return ExitConfig
	case ErrorTypeNavigation, ErrorTypeAuth, ErrorTypeUnreachable:
		return ExitSession
	case ErrorTypeIO:
		return ExitIO
	default:
		return ExitFailure
	}
}
