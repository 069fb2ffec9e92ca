package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure of the render pipeline.
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "INVALID_INPUT"
	KindUnsupportedFormat ErrorKind = "UNSUPPORTED_FORMAT"
	KindSecurityViolation ErrorKind = "SECURITY_VIOLATION"
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindRender            ErrorKind = "RENDER_ERROR"
	KindRenderTimeout     ErrorKind = "RENDER_TIMEOUT"
	KindInternal          ErrorKind = "INTERNAL_ERROR"
)

// Category is the externally visible class of a failure.
type Category int

const (
	CategoryClient Category = iota
	CategoryTimeout
	CategoryServer
)

// Category maps the kind to its status category. Unknown kinds are server errors.
func (k ErrorKind) Category() Category {
	switch k {
	case KindInvalidInput, KindUnsupportedFormat, KindSecurityViolation, KindValidation:
		return CategoryClient
	case KindRenderTimeout:
		return CategoryTimeout
	default:
		return CategoryServer
	}
}

// HTTPStatus maps the kind to a response status code.
func (k ErrorKind) HTTPStatus() int {
	switch k.Category() {
	case CategoryClient:
		return 400
	case CategoryTimeout:
		return 408
	default:
		return 500
	}
}

// genericInternalMessage is returned for failures that were not classified.
const genericInternalMessage = "An unexpected error occurred"

// Error is a classified pipeline failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error of the same kind, so errors.Is(err, ErrRenderTimeout) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Cause == nil && t.Kind == e.Kind
}

// Code is the stable machine-readable code of the failure.
func (e *Error) Code() string { return string(e.Kind) }

// Kind sentinels for errors.Is.
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrSecurityViolation = &Error{Kind: KindSecurityViolation}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrRender            = &Error{Kind: KindRender}
	ErrRenderTimeout     = &Error{Kind: KindRenderTimeout}
	ErrInternal          = &Error{Kind: KindInternal}
)

// NewError builds a classified failure.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// WrapError builds a classified failure that keeps cause for diagnostics.
func WrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Classify returns the classified form of err. Unclassified failures become
// INTERNAL_ERROR with a generic message; their detail stays in Cause only.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de
	}
	if de != nil {
		return &Error{Kind: de.Kind, Message: string(de.Kind), Cause: err}
	}
	return &Error{Kind: KindInternal, Message: genericInternalMessage, Cause: err}
}

// KindOf returns the kind of err after classification.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}
