package llm

import (
	"errors"
	"strings"
)

// ErrorKind classifies where a client failure happened.
type ErrorKind int

const (
	// ErrUnknown is the catch-all and the fallback for empty error lists.
	ErrUnknown ErrorKind = iota
	// ErrNetwork means the transport could not be established or was lost.
	ErrNetwork
	// ErrResponse means the remote reported an application-level error.
	ErrResponse
	// ErrFormat means the remote answered but the payload did not parse.
	ErrFormat
)

// HumanReadable returns the label shown next to error messages.
func (k ErrorKind) HumanReadable() string {
	switch k {
	case ErrNetwork:
		return "Network error"
	case ErrResponse:
		return "Remote error"
	case ErrFormat:
		return "Format error"
	default:
		return "Unknown error"
	}
}

func (k ErrorKind) String() string {
	switch k {
	case ErrNetwork:
		return "network"
	case ErrResponse:
		return "response"
	case ErrFormat:
		return "format"
	default:
		return "unknown"
	}
}

const defaultErrorMessage = "An error occurred, but no details were provided."

// ClientError is an immutable failure reported by a Client. The optional
// source is shared between copies and never duplicated.
type ClientError struct {
	kind    ErrorKind
	message string
	source  error
}

func NewError(kind ErrorKind, message string) *ClientError {
	return &ClientError{kind: kind, message: message}
}

// NewErrorWithSource attaches the underlying cause.
func NewErrorWithSource(kind ErrorKind, message string, source error) *ClientError {
	return &ClientError{kind: kind, message: message, source: source}
}

func (e *ClientError) Kind() ErrorKind { return e.kind }
func (e *ClientError) Message() string { return e.message }
func (e *ClientError) Unwrap() error { return e.source }

func (e *ClientError) Error() string {
	return e.kind.HumanReadable() + ": " + e.message
}

// IsKind reports whether err is, or wraps, a ClientError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.kind == kind
}

// Errors is a list of client errors usable as a single error.
type Errors []*ClientError

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

func (es Errors) Unwrap() []error {
	out := make([]error, len(es))
	for i, e := range es {
		out[i] = e
	}
	return out
}
