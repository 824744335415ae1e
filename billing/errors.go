package billing

import (
	"errors"
	"fmt"
)

// Code classifies a billing failure. The api layer maps codes to HTTP
// statuses; everything else treats them as opaque labels for logs and
// metrics.
type Code string

const (
	CodeValidation       Code = "validation"
	CodeUnauthorized     Code = "unauthorized"
	CodeInvalidSignature Code = "invalid_signature"
	CodePersistence      Code = "persistence"
	CodeConfiguration    Code = "configuration"
	CodeNotImplemented   Code = "not_implemented"
	CodeInternal         Code = "internal"
)

// Error is a classified billing failure. Message is safe to surface to API
// clients; Err carries the underlying cause for logs only.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("billing: %s: %v", e.Message, e.Err)
	}
	return "billing: " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Errf creates a classified error with a formatted message.
func Errf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. Returns nil when err is nil.
func Wrap(code Code, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf returns the classification of err, or CodeInternal when err carries
// no billing classification.
func CodeOf(err error) Code {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return CodeInternal
}
