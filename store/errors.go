package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Error codes carried by *Error.
const (
	CodeNotFound    = "not_found"
	CodeInvalid     = "invalid"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

// Error is the structured failure returned by a Collection.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound) works on wrapped values.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = &Error{Code: CodeNotFound, Message: "record not found"}

// IsNotFound reports whether err denotes a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func invalid(format string, args ...any) *Error {
	return &Error{Code: CodeInvalid, Message: fmt.Sprintf(format, args...)}
}

// Invalidf reports a write rejected for its content.
func Invalidf(format string, args ...any) error { return invalid(format, args...) }

// wrap converts driver and gorm errors into *Error.
func wrap(err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Code: CodeNotFound, Message: "record not found", Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeUnavailable, Message: err.Error(), Err: err}
	default:
		return &Error{Code: CodeInternal, Message: err.Error(), Err: err}
	}
}
