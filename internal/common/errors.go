// Package common defines shared constants, sentinel errors and small helpers
// used across the estatematch server. Callers should use errors.Is to match
// the sentinel values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound   = errors.New("not found")
	ErrEmptyDataset = errors.New("empty dataset")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")

	// Validation errors.
	ErrValidation      = errors.New("validation error")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidArgument = errors.New("invalid argument")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// External collaborators (model provider, mail relay).
	ErrUpstream = errors.New("upstream error")

	// Model output that does not match the expected schema.
	ErrMalformedInput = errors.New("malformed input")
)

// Error pairs a sentinel kind with a message that is safe to show to callers.
type Error struct {
	Kind    error
	Message string
}

// NewError returns an *Error of the given kind.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// Message extracts the caller-facing message from err, falling back to
// err.Error() when err carries no *Error.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
