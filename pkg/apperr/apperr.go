package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies recoverable request failures. Every service error carries
// exactly one kind so handlers can map it to an HTTP status without string
// matching.
type Kind int

const (
	KindUnknown       Kind = iota
	KindValidation         // missing/malformed field — no mutation
	KindAuthorization      // role/ownership precondition failed — no mutation
	KindStateConflict      // request no longer in the expected status ("already processed")
	KindNotFound           // referenced request/user/policy absent
	KindStorage            // attachment or persistence failure
)

// Error is a kinded application error.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Kind() Kind { return e.kind }

// New returns a kinded error with the given message.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, msg: msg, err: err}
}

// Convenience constructors matching the error taxonomy.
func Validation(msg string) *Error    { return New(KindValidation, msg) }
func Authorization(msg string) *Error { return New(KindAuthorization, msg) }
func StateConflict(msg string) *Error { return New(KindStateConflict, msg) }
func NotFound(msg string) *Error      { return New(KindNotFound, msg) }
func Storage(msg string, err error) *Error {
	return Wrap(KindStorage, msg, err)
}

// KindOf extracts the kind from an error chain, KindUnknown if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error to the status code handlers should respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindStateConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindStorage:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
