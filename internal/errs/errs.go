// Package errs defines the error taxonomy shared by validation, the service
// layer and the HTTP boundary.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of failure. The string value is what clients see
// in the "error" field of a response body.
type Kind string

const (
	EmptyName            Kind = "EmptyName"
	NameTooLong          Kind = "NameTooLong"
	TooFewPoints         Kind = "TooFewPoints"
	TooManyPoints        Kind = "TooManyPoints"
	MalformedPoint       Kind = "MalformedPoint"
	NonFiniteCoordinate  Kind = "NonFiniteCoordinate"
	CoordinateOutOfRange Kind = "CoordinateOutOfRange"
	InvalidIdFormat      Kind = "InvalidIdFormat"
	NotFound             Kind = "NotFound"

	// InvalidRequest covers bodies that are not JSON or lack the expected shape.
	InvalidRequest Kind = "InvalidRequest"

	// Internal is used for storage and transport failures.
	Internal Kind = "Internal"

	// MissingName is raised client-side when drawing starts without a name.
	MissingName Kind = "MissingName"
)

// Error is a failure with a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsValidation reports whether kind is a client input failure.
func IsValidation(kind Kind) bool {
	switch kind {
	case EmptyName, NameTooLong, TooFewPoints, TooManyPoints, MalformedPoint,
		NonFiniteCoordinate, CoordinateOutOfRange, InvalidIdFormat, InvalidRequest, MissingName:
		return true
	}
	return false
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
	switch {
	case kind == NotFound:
		return http.StatusNotFound
	case IsValidation(kind):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
