package game

import (
	"errors"
	"fmt"
)

// Kind classifies an order failure.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindInvalidState Kind = "invalid_state"
	KindCapacity     Kind = "capacity"
	KindInvalid      Kind = "invalid" // malformed payload or broken invariant
)

// Error is a recoverable order failure. No state is mutated when one is returned.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error of the same kind, so errors.Is(err, ErrCapacity) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden    = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrInvalidState = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrCapacity     = &Error{Kind: KindCapacity, Message: "insufficient capacity"}
	ErrInvalid      = &Error{Kind: KindInvalid, Message: "invalid order"}
)

func failf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

var errGameOver = &Error{Kind: KindInvalidState, Message: "Game is over"}
