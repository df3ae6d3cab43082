package core

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies failures that reach the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindLoad
	KindBadInput
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindLoad:
		return "load_error"
	case KindBadInput:
		return "bad_input"
	default:
		return "internal"
	}
}

// Status returns the HTTP status code reported for the kind.
func (k Kind) Status() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindBadInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error with a client-facing message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound reports a missing resource.
func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// LoadError wraps a model load failure.
func LoadError(err error, format string, args ...any) *Error {
	return &Error{Kind: KindLoad, Msg: fmt.Sprintf(format, args...), Err: err}
}

// BadInput wraps a client input failure. err may be nil.
func BadInput(err error, format string, args ...any) *Error {
	return &Error{Kind: KindBadInput, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Internal wraps an unexpected server-side failure.
func Internal(err error, format string, args ...any) *Error {
	return &Error{Kind: KindInternal, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
