// Package apperr classifies failures the storefront reports to its callers.
//
// Services return *Error values carrying a Kind and a message safe to show to a
// customer. Stores return the package sentinels (optionally wrapped) so that
// services can tell a missing document or a failed stock guard apart from an
// infrastructure failure.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInsufficientStock
	KindAccessDenied
	KindInvalidTransition
	KindConflict
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindAccessDenied:
		return "access_denied"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

var (
	ErrInternal          = errors.New("internal error")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAccessDenied      = errors.New("access denied")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("conflict")
	ErrUnauthenticated   = errors.New("unauthenticated")
)

var sentinels = map[Kind]error{
	KindInternal:          ErrInternal,
	KindValidation:        ErrValidation,
	KindNotFound:          ErrNotFound,
	KindInsufficientStock: ErrInsufficientStock,
	KindAccessDenied:      ErrAccessDenied,
	KindInvalidTransition: ErrInvalidTransition,
	KindConflict:          ErrConflict,
	KindUnauthenticated:   ErrUnauthenticated,
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func AccessDenied(format string, args ...any) *Error {
	return New(KindAccessDenied, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return New(KindInvalidTransition, format, args...)
}

func Internal(err error, format string, args ...any) *Error {
	return Wrap(KindInternal, err, format, args...)
}

// InsufficientStock reports the counts a customer needs to adjust the request.
func InsufficientStock(product string, available, requested int) *Error {
	return New(KindInsufficientStock,
		"Insufficient stock for %s. Available: %d, Requested: %d", product, available, requested)
}

// KindOf classifies err. Plain sentinels map to their kind; anything else is internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindInternal
}

// Message returns the user-facing message of err, or fallback when err is not
// an *Error or is internal.
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		return appErr.Message
	}
	return fallback
}
