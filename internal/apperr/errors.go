// Package apperr defines the closed set of error kinds returned across the
// repository, service, resolver and tool boundaries.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error. The set is closed: adapters switch on it.
type Kind string

const (
	KindInvalidName            Kind = "InvalidName"
	KindContentTooLarge        Kind = "ContentTooLarge"
	KindAlreadyExists          Kind = "AlreadyExists"
	KindNotFound               Kind = "NotFound"
	KindCorruptMetadata        Kind = "CorruptMetadata"
	KindSecurityViolation      Kind = "SecurityViolation"
	KindInvalidURI             Kind = "InvalidUri"
	KindUnsupportedScheme      Kind = "UnsupportedScheme"
	KindInvalidInstructionPath Kind = "InvalidInstructionPath"
	KindUnknownTool            Kind = "UnknownTool"
	KindSchemaValidationFailed Kind = "SchemaValidationFailed"
	KindUnexpected             Kind = "Unexpected"
)

// Sentinels for errors.Is checks. They match any *Error of the same kind.
var (
	ErrInvalidName            = &Error{Kind: KindInvalidName}
	ErrContentTooLarge        = &Error{Kind: KindContentTooLarge}
	ErrAlreadyExists          = &Error{Kind: KindAlreadyExists}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrCorruptMetadata        = &Error{Kind: KindCorruptMetadata}
	ErrSecurityViolation      = &Error{Kind: KindSecurityViolation}
	ErrInvalidURI             = &Error{Kind: KindInvalidURI}
	ErrUnsupportedScheme      = &Error{Kind: KindUnsupportedScheme}
	ErrInvalidInstructionPath = &Error{Kind: KindInvalidInstructionPath}
	ErrUnknownTool            = &Error{Kind: KindUnknownTool}
	ErrSchemaValidationFailed = &Error{Kind: KindSchemaValidationFailed}
	ErrUnexpected             = &Error{Kind: KindUnexpected}
)

// Error is a classified failure with a human-readable message and an
// optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// New returns an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind carrying err as its cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// Unexpected wraps an unclassified fault, keeping its message.
func Unexpected(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindUnexpected, Message: err.Error(), Err: err}
}

// KindOf returns the kind of err. Unclassified errors are KindUnexpected;
// a nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}
