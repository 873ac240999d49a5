package services

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure so transports can map it to a status.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindPermission
	KindPrecondition
	KindNotFound
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindPrecondition:
		return "precondition"
	case KindNotFound:
		return "not found"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrValidation   = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrPermission   = &Error{Kind: KindPermission, Message: "permission denied"}
	ErrPrecondition = &Error{Kind: KindPrecondition, Message: "precondition failed"}
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "not found"}
	ErrStorage      = &Error{Kind: KindStorage, Message: "storage failure"}
)

// Error carries a kind and a human-readable reason.
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

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func validationf(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func permissionf(format string, args ...interface{}) error {
	return &Error{Kind: KindPermission, Message: fmt.Sprintf(format, args...)}
}

func preconditionf(format string, args ...interface{}) error {
	return &Error{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// storageErr wraps a persistence failure. Errors that are already typed pass through.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindStorage, Message: op, Err: err}
}

// KindOf returns the kind of err, or 0 when err is not a service error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Reason returns the human-readable message of err.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
