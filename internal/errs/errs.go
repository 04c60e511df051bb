// Package errs defines the error taxonomy shared by the bot core. Every
// error carries a stable code so callers can tell a missing configuration
// apart from a rejected login without matching on message text.
package errs

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeUnknown            = "UNKNOWN"
	CodeConfig             = "CONFIG"
	CodeConfigIncomplete   = "CONFIG_INCOMPLETE"
	CodeAuthentication     = "AUTHENTICATION"
	CodeModuleRegistration = "MODULE_REGISTRATION"
	CodeTransport          = "TRANSPORT"
	CodeDatabase           = "DATABASE"
)

// ErrNotConnected is returned by protocol clients used before Connect succeeded.
var ErrNotConnected = errors.New("protocol client is not connected")

// Error is a coded application error.
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

// Code returns the error code.
func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the first *Error in err's chain,
// or CodeUnknown if there is none.
func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.code
	}

	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	return err != nil && Code(err) == code
}

func New(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

func NewConfigError(message string, cause error) error {
	return New(CodeConfig, message, cause)
}

func NewConfigIncompleteError(message string) error {
	return New(CodeConfigIncomplete, message, nil)
}

func NewAuthenticationError(message string, cause error) error {
	return New(CodeAuthentication, message, cause)
}

func NewModuleRegistrationError(message string, cause error) error {
	return New(CodeModuleRegistration, message, cause)
}

func NewTransportError(message string, cause error) error {
	return New(CodeTransport, message, cause)
}

func NewDatabaseError(message string, cause error) error {
	return New(CodeDatabase, message, cause)
}
