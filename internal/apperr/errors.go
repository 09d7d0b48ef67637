// Package apperr defines the error kinds shared by services and the HTTP
// boundary. Services return *Error values; handlers map the kind to a status
// code exactly once.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindInvalidInput    Kind = "INVALID_INPUT"
	KindUnauthorized    Kind = "UNAUTHORIZED"
	KindForbidden       Kind = "FORBIDDEN"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindConfiguration   Kind = "CONFIGURATION_ERROR"
	KindExternalService Kind = "EXTERNAL_SERVICE_ERROR"
	KindEmailDelivery   Kind = "EMAIL_DELIVERY_ERROR"
	KindComparison      Kind = "COMPARISON_ERROR"
	KindInvalidToken    Kind = "INVALID_TOKEN"
	KindInternal        Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by kind so errors.Is(err, apperr.NotFound(""))
// style checks work without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func InvalidInput(message string) *Error { return New(KindInvalidInput, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func Forbidden(message string) *Error { return New(KindForbidden, message) }
func NotFound(message string) *Error { return New(KindNotFound, message) }
func Conflict(message string) *Error { return New(KindConflict, message) }
func Configuration(message string) *Error { return New(KindConfiguration, message) }
func InvalidToken(message string) *Error { return New(KindInvalidToken, message) }
func Internal(message string) *Error { return New(KindInternal, message) }
func ExternalService(message string, cause error) *Error {
	return Wrap(KindExternalService, message, cause)
}
func EmailDelivery(message string, cause error) *Error {
	return Wrap(KindEmailDelivery, message, cause)
}
func Comparison(message string, cause error) *Error {
	return Wrap(KindComparison, message, cause)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the caller-safe message of err. The cause of an *Error is
// never included, and errors that are not *Error values never leak their text.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "Internal server error"
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUnauthorized, KindInvalidToken:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindExternalService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
