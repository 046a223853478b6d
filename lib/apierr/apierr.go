package apierr

import (
	"errors"
	"net/http"
)

// Kind classifies a request-scoped failure so the HTTP layer can map it
// to a status code without inspecting message strings.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindOutOfRange
	KindAlreadyCompleted
	KindConflict
)

// Error is a failure with a classified kind. All of these conditions are
// reported synchronously to the caller and none are fatal to the process.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func OutOfRange(message string) error {
	return &Error{Kind: KindOutOfRange, Message: message}
}

func AlreadyCompleted(message string) error {
	return &Error{Kind: KindAlreadyCompleted, Message: message}
}

func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// StatusCode maps an error to the HTTP status the REST boundary reports.
// Unclassified errors are treated as internal.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}
