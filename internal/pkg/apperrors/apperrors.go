// Package apperrors defines the error taxonomy shared by the store, the business layer and
// the HTTP surface. Every failure the service reports belongs to exactly one kind; the HTTP
// layer maps kinds to status codes and only ever shows the client-facing message.
package apperrors

import "errors"

// Error kinds. Use errors.Is(err, ErrNotFound) and friends to classify a failure.
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrTransient         = errors.New("temporary store failure, retry later")
	ErrInternal          = errors.New("internal server error")
)

var kinds = []error{
	ErrInvalidInput,
	ErrConflict,
	ErrUnauthorized,
	ErrForbidden,
	ErrNotFound,
	ErrInsufficientStock,
	ErrTransient,
	ErrInternal,
}

// Error carries a taxonomy kind, the message safe to show to a client and an optional cause
// that is only ever logged.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

// New returns an error of the given kind with a client-facing message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind that keeps cause reachable through errors.Is/As.
func Wrap(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

// KindOf reports the taxonomy kind of err. Anything unclassified is ErrInternal.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}

// Message returns the text a client may see for err. Internal failures never expose
// their cause.
func Message(err error) string {
	kind := KindOf(err)
	if kind == ErrInternal {
		return ErrInternal.Error()
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Error()
	}
	return kind.Error()
}
