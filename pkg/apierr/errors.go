// Package apierr defines the sentinel error kinds shared by every wire
// surface (S3, public API, file-request, image transform). Each
// surface's response writer translates a Kind into its own wire format
// (XML for S3, JSON everywhere else) at a single point, per surface.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into one of a fixed set of outcomes that
// every wire surface can map to a status code.
type Kind int

const (
	// Internal covers anything that isn't one of the kinds below.
	Internal Kind = iota
	NotFound
	Unauthorized
	Forbidden
	BadRequest
	Conflict
	RangeNotSatisfiable
	QuotaExceeded
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "NotFound"
	case Unauthorized:
		return "Unauthorized"
	case Forbidden:
		return "Forbidden"
	case BadRequest:
		return "BadRequest"
	case Conflict:
		return "Conflict"
	case RangeNotSatisfiable:
		return "RangeNotSatisfiable"
	case QuotaExceeded:
		return "QuotaExceeded"
	default:
		return "Internal"
	}
}

// HTTPStatus returns the status code a wire surface should use for
// this kind, absent a surface-specific override (S3 remaps some of
// these to its own XML error codes; see pkg/s3api/errors.go).
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case BadRequest:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case RangeNotSatisfiable:
		return http.StatusRequestedRangeNotSatisfiable
	case QuotaExceeded:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error wraps an underlying cause with a Kind and a caller-facing
// message, exactly as the teacher wraps store errors with context via
// fmt.Errorf("...: %w", err).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New constructs an *Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf extracts the Kind of err, walking the unwrap chain. Errors
// that are not an *Error (or don't wrap one) are treated as Internal.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return Internal
}

// Is reports whether err's Kind matches kind, for use with errors.Is
// style call sites that only care about classification.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

var (
	// ErrNotFound is a sentinel usable with errors.Is for bare
	// not-found conditions that don't need a custom message.
	ErrNotFound = &Error{Kind: NotFound, Message: "not found"}

	ErrUnauthorized = &Error{Kind: Unauthorized, Message: "unauthorized"}
	ErrForbidden    = &Error{Kind: Forbidden, Message: "forbidden"}
)
