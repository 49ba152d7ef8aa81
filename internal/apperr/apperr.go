// Package apperr defines the error kinds surfaced by the capacity and
// governance engine.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error for callers.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation is an illegal transition or a missing required field.
	KindValidation
	// KindNotFound is a referenced request, item or person that does not exist.
	KindNotFound
	// KindAlreadyDone is an idempotent re-entry. Callers treat it as success.
	KindAlreadyDone
	// KindDependency is an operation invoked before its prerequisite ran.
	KindDependency
	// KindStore is a persistence failure.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAlreadyDone:
		return "already_done"
	case KindDependency:
		return "dependency"
	case KindStore:
		return "store"
	}
	return "unknown"
}

// Error is a classified error. Op names the failing operation in the
// "pkg: verb" form used across the repo.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	s := e.Op
	if e.Msg != "" {
		if s != "" {
			s += ": "
		}
		s += e.Msg
	}
	if e.Err != nil {
		if s != "" {
			s += ": "
		}
		s += e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Validation returns a KindValidation error.
func Validation(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error for the named entity.
func NotFound(op, entity, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf("%s not found: %s", entity, id)}
}

// AlreadyDone returns a KindAlreadyDone error carrying a note for the caller.
func AlreadyDone(op, note string) *Error {
	return &Error{Kind: KindAlreadyDone, Op: op, Msg: note}
}

// Note returns the note of an already-done error in err's chain.
func Note(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindAlreadyDone {
		return e.Msg, true
	}
	return "", false
}

// Dependency returns a KindDependency error.
func Dependency(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindDependency, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Store wraps a persistence failure, keeping the original cause.
func Store(op string, err error) *Error {
	return &Error{Kind: KindStore, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
