package types

import "fmt"

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Engine error codes
const (
	ErrConnection ErrorCode = "CONNECTION" // transport unreachable or non-2xx status
	ErrProtocol   ErrorCode = "PROTOCOL"   // unexpected response shape
	ErrCancelled  ErrorCode = "CANCELLED"  // run cancelled mid-drive
)

// Task error codes
const (
	ErrTaskNotFound      ErrorCode = "TASK_NOT_FOUND"
	ErrTaskTerminal      ErrorCode = "TASK_TERMINAL"
	ErrTaskAlreadyActive ErrorCode = "TASK_ALREADY_ACTIVE"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"
	ErrInternalError     ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewConnectionError creates a CONNECTION error. A connection error is
// retryable by a fresh run; the failing drive never retries in place.
func NewConnectionError(message string, cause error) *Error {
	return &Error{Code: ErrConnection, Message: message, Retryable: true, Cause: cause}
}

// NewNotFoundError creates a TASK_NOT_FOUND error.
func NewNotFoundError(message string) *Error {
	return &Error{Code: ErrTaskNotFound, Message: message, HTTPStatus: 404}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
