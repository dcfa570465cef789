package model

import (
	"errors"
)

// Error categories. Every failure returned by the launcher matches exactly
// one of them through errors.Is.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrDirectoryNotFound    = errors.New("directory not found")
	ErrDirectoryNotReadable = errors.New("directory not readable")
	ErrToolNotFound         = errors.New("external tool not found")
	ErrToolExecution        = errors.New("external tool execution failed")
)

// Exit codes of the joblauncher binary, one per error category.
const (
	ExitOK                   = 0
	ExitFailure              = 1
	ExitInvalidArgument      = 2
	ExitDirectoryNotFound    = 3
	ExitDirectoryNotReadable = 4
	ExitToolNotFound         = 5
	ExitToolExecution        = 6
)

// Error is a categorized failure related to a Subject (path, argument or
// executable name). It matches both Kind and the wrapped Err.
type Error struct {
	Kind    error
	Subject string
	Err     error
}

func NewError(kind error, subject string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Subject != "" {
		msg += ": " + e.Subject
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Category returns a short machine friendly name of the error category
func Category(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrDirectoryNotFound):
		return "directory_not_found"
	case errors.Is(err, ErrDirectoryNotReadable):
		return "directory_not_readable"
	case errors.Is(err, ErrToolNotFound):
		return "tool_not_found"
	case errors.Is(err, ErrToolExecution):
		return "tool_execution"
	default:
		return "internal"
	}
}

// ExitCode maps an error to the process exit code of joblauncher.
func ExitCode(err error) int {
	switch Category(err) {
	case "ok":
		return ExitOK
	case "invalid_argument":
		return ExitInvalidArgument
	case "directory_not_found":
		return ExitDirectoryNotFound
	case "directory_not_readable":
		return ExitDirectoryNotReadable
	case "tool_not_found":
		return ExitToolNotFound
	case "tool_execution":
		return ExitToolExecution
	default:
		return ExitFailure
	}
}
