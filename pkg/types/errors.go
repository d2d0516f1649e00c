package types

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to branch on failure mode.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindProcessing  Kind = "processing"
	KindStorage     Kind = "storage"
	KindModel       Kind = "model"
	KindUnavailable Kind = "unavailable"
)

// Error is the structured error type used at component boundaries.
// Internal code wraps stdlib errors; exported operations return *Error so
// callers can distinguish "feature not ready" from "no matches" and the like.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind so errors.Is works across wrapped chains.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// NewError creates a structured error with the given kind.
func NewError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Validationf creates a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf creates a not-found error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Processingf creates a processing error wrapping cause.
func Processingf(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindProcessing, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Storagef creates a storage error wrapping cause.
func Storagef(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Modelf creates a model error wrapping cause.
func Modelf(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindModel, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Unavailablef creates an unavailable error. Returned when vector or hybrid
// search is requested before any embeddings exist.
func Unavailablef(format string, args ...any) *Error {
	return &Error{Kind: KindUnavailable, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err if it is a structured Error, or "" otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsUnavailable reports whether err indicates the index has no embeddings yet.
func IsUnavailable(err error) bool {
	return KindOf(err) == KindUnavailable
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
