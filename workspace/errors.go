package workspace

import "errors"

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	KindValidation   Kind = "Validation"
	KindNotFound     Kind = "NotFound"
	KindVerification Kind = "Verification"
	KindInternal     Kind = "Internal"
)

// Error is the structured error returned by workspace operations.
//
// Code is a stable identifier (e.g. WS-VAL-001) naming the violated rule.
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError returns a structured error without a cause.
func NewError(kind Kind, code, msg string) error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// WrapError returns a structured error wrapping cause.
func WrapError(kind Kind, code, msg string, cause error) error {
	if cause == nil {
		return NewError(kind, code, msg)
	}
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

// Invalid is shorthand for a KindValidation error.
func Invalid(code, msg string) error {
	return NewError(KindValidation, code, msg)
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// Code returns the stable code for a structured error, or "" if unknown.
func Code(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Code
}
