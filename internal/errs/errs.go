// Package errs defines the error taxonomy shared by the collection core and
// its collaborators. Every typed error carries a stable code so callers such
// as the operator bot and the scheduler can decide how to react without
// matching on error strings.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown          = "UNKNOWN"
	CodeAuthentication   = "AUTHENTICATION"
	CodeEntityResolution = "ENTITY_RESOLUTION"
	CodeTransient        = "TRANSIENT"
	CodeDataIntegrity    = "DATA_INTEGRITY"
	CodeValidation       = "VALIDATION"
	CodeDatabase         = "DATABASE"
	CodeConfig           = "CONFIG"
)

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a basic application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// New returns an error with the given code and no cause. Values returned by
// New are suitable as package-level sentinels compared with errors.Is.
func New(code, message string) *Error {
	return &Error{code: code, message: message}
}

// Code returns the code of the first ApplicationError in err's chain,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}
	return CodeUnknown
}

func NewAuthenticationError(message string, cause error) error {
	return &Error{code: CodeAuthentication, message: message, err: cause}
}

func NewEntityResolutionError(message string, cause error) error {
	return &Error{code: CodeEntityResolution, message: message, err: cause}
}

func NewTransientError(message string, cause error) error {
	return &Error{code: CodeTransient, message: message, err: cause}
}

func NewDataIntegrityError(message string, cause error) error {
	return &Error{code: CodeDataIntegrity, message: message, err: cause}
}

func NewValidationError(message string, cause error) error {
	return &Error{code: CodeValidation, message: message, err: cause}
}

func NewDatabaseError(message string, cause error) error {
	return &Error{code: CodeDatabase, message: message, err: cause}
}

func NewConfigError(message string, cause error) error {
	return &Error{code: CodeConfig, message: message, err: cause}
}

// IsTransient reports whether err is worth retrying on the next scheduled
// cycle. A context deadline counts as transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return Code(err) == CodeTransient
}
