// Package apperr holds the typed error taxonomy shared by the booking core
// and its HTTP adapters.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindConflict           Kind = "CONFLICT"
	KindInvalidState       Kind = "INVALID_STATE"
	KindNotFound           Kind = "NOT_FOUND"
	KindExpired            Kind = "EXPIRED"
	KindAlreadyBooked      Kind = "ALREADY_BOOKED"
	KindNotOwner           Kind = "NOT_OWNER"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindValidation         Kind = "VALIDATION"
	KindInternal           Kind = "INTERNAL"
)

// kindSentinel lets callers match on a kind with errors.Is
type kindSentinel Kind

func (k kindSentinel) Error() string { return string(k) }

var (
	ErrConflict           error = kindSentinel(KindConflict)
	ErrInvalidState       error = kindSentinel(KindInvalidState)
	ErrNotFound           error = kindSentinel(KindNotFound)
	ErrExpired            error = kindSentinel(KindExpired)
	ErrAlreadyBooked      error = kindSentinel(KindAlreadyBooked)
	ErrNotOwner           error = kindSentinel(KindNotOwner)
	ErrStorageUnavailable error = kindSentinel(KindStorageUnavailable)
	ErrValidation         error = kindSentinel(KindValidation)
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	k, ok := target.(kindSentinel)
	return ok && Kind(k) == e.Kind
}

func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Conflict(op, format string, args ...interface{}) *Error {
	return New(KindConflict, op, format, args...)
}

func InvalidState(op, format string, args ...interface{}) *Error {
	return New(KindInvalidState, op, format, args...)
}

func NotFound(op, format string, args ...interface{}) *Error {
	return New(KindNotFound, op, format, args...)
}

func Expired(op, format string, args ...interface{}) *Error {
	return New(KindExpired, op, format, args...)
}

func AlreadyBooked(op, format string, args ...interface{}) *Error {
	return New(KindAlreadyBooked, op, format, args...)
}

func NotOwner(op, format string, args ...interface{}) *Error {
	return New(KindNotOwner, op, format, args...)
}

func Validation(op, format string, args ...interface{}) *Error {
	return New(KindValidation, op, format, args...)
}

// Unavailable marks a storage or collaborator failure. Always retryable.
func Unavailable(op string, err error) *Error {
	return Wrap(KindStorageUnavailable, op, err)
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k kindSentinel
	if errors.As(err, &k) {
		return Kind(k)
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may simply try again.
func Retryable(err error) bool {
	return KindOf(err) == KindStorageUnavailable
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindConflict, KindAlreadyBooked, KindNotOwner:
		return http.StatusConflict
	case KindInvalidState, KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExpired:
		return http.StatusGone
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
