package services

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors returned (wrapped) by store implementations.
var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("unique constraint conflict")
	ErrTransient = errors.New("transient store failure")
)

// ErrorKind is the stable, user-visible classification of a failure.
type ErrorKind string

const (
	KindUnauthorized  ErrorKind = "unauthorized"
	KindForbidden     ErrorKind = "forbidden"
	KindNotFound      ErrorKind = "not_found"
	KindInvalidAction ErrorKind = "invalid_action"
	KindValidation    ErrorKind = "validation"
	KindConflict      ErrorKind = "conflict"
	KindLimitExceeded ErrorKind = "limit_exceeded"
	KindTransient     ErrorKind = "transient"
	KindPersist       ErrorKind = "persist_failure"
	KindInternal      ErrorKind = "internal"
)

// AppError carries a kind, a machine code and a message safe to show users.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// Retryable reports whether the caller may retry the same request unchanged.
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransient
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{Kind: KindUnauthorized, Code: "UNAUTHORIZED", Message: message}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{Kind: KindForbidden, Code: "FORBIDDEN", Message: message}
}

func NewNotFoundError(code, message string) *AppError {
	return &AppError{Kind: KindNotFound, Code: code, Message: message}
}

func NewInvalidActionError(action string) *AppError {
	return &AppError{Kind: KindInvalidAction, Code: "INVALID_ACTION", Message: fmt.Sprintf("invalid action %q", action)}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: message}
}

func NewConflictError(code, message string) *AppError {
	return &AppError{Kind: KindConflict, Code: code, Message: message}
}

func NewLimitExceededError(code, message string) *AppError {
	return &AppError{Kind: KindLimitExceeded, Code: code, Message: message}
}

// storeError classifies an error coming back from a repository call.
// NotFound and Conflict are usually handled by the caller before this is
// reached; anything unclassified becomes a persist failure.
func storeError(op string, err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &AppError{Kind: KindTransient, Code: "STORE_UNAVAILABLE", Message: "datastore unavailable, retry later", Err: fmt.Errorf("%s: %w", op, err)}
	case errors.Is(err, ErrNotFound):
		return &AppError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "record not found", Err: fmt.Errorf("%s: %w", op, err)}
	case errors.Is(err, ErrConflict):
		return &AppError{Kind: KindConflict, Code: "CONFLICT", Message: "conflicting write", Err: fmt.Errorf("%s: %w", op, err)}
	default:
		return &AppError{Kind: KindPersist, Code: "PERSIST_FAILED", Message: "failed to persist changes", Err: fmt.Errorf("%s: %w", op, err)}
	}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}
