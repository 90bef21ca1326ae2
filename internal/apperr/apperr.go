// Package apperr classifies failures so the HTTP layer can map them to a
// status code without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the failure class of an Error.
type Kind int

const (
	// Internal is anything not classified below.
	Internal Kind = iota
	// Validation means the request itself is malformed or incomplete.
	Validation
	// Decode means caller-supplied data (base64, URL, image bytes) could not
	// be turned into something the engines can process.
	Decode
	// Engine means a detection, OCR or anonymization engine failed.
	Engine
	// NotFound means a requested artifact does not exist.
	NotFound
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case Decode:
		return "decode"
	case Engine:
		return "engine"
	case NotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string // e.g. "mask", "redact_url"; used for logs only
	Err  error
}

// Error returns the cause's message; Op is not included.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with kind. A nil err yields nil.
// An error that is already classified keeps its original kind.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validationf builds a Validation error from a format string.
func Validationf(format string, args ...any) error {
	return &Error{Kind: Validation, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the Kind of err, or Internal when err is unclassified.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// OpOf reports the operation recorded on err, if any.
func OpOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Op
	}
	return ""
}
