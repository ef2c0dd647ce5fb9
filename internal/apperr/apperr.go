// Package apperr carries the request-level error taxonomy and its mapping
// to HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a request failure
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindBadRequest
	KindAlreadyFinalized
	KindDuplicateReview
	KindWrongStage
	KindConflict
	KindInvalidState
	KindCollaborator
)

var kindNames = map[Kind]string{
	KindInternal:         "internal",
	KindUnauthenticated:  "unauthenticated",
	KindForbidden:        "forbidden",
	KindNotFound:         "not_found",
	KindBadRequest:       "bad_request",
	KindAlreadyFinalized: "already_finalized",
	KindDuplicateReview:  "duplicate_review",
	KindWrongStage:       "wrong_stage",
	KindConflict:         "conflict",
	KindInvalidState:     "invalid_state",
	KindCollaborator:     "collaborator_failure",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "internal"
}

// Error is a classified failure with a user-facing message
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Unauthenticated(message string) *Error { return New(KindUnauthenticated, message) }
func Forbidden(message string) *Error       { return New(KindForbidden, message) }
func NotFound(message string) *Error        { return New(KindNotFound, message) }
func BadRequest(message string) *Error      { return New(KindBadRequest, message) }

// Collaborator marks an unexpected failure of an external dependency
func Collaborator(message string, err error) *Error {
	return Wrap(KindCollaborator, message, err)
}

// KindOf returns the kind of err, KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps err to a response status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden, KindWrongStage:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest, KindAlreadyFinalized, KindDuplicateReview:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is what the caller sees. Unclassified and collaborator
// failures collapse to a generic message.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong"
	}
	return e.Message
}
