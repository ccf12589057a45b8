package core

import (
	"errors"
	"fmt"
)

// Error is the engine-level error envelope. The Message field is what the
// user-facing banner shows; Code carries the machine-readable reason.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Cause   error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrCredentialMissing  ErrorType = "credential_missing"
	ErrDeviceAccessDenied ErrorType = "device_access_denied"
	ErrTransportOpen      ErrorType = "transport_open_failed"
	ErrTransport          ErrorType = "transport_error"
	ErrToolExecution      ErrorType = "tool_execution_failed"
	ErrFetch              ErrorType = "fetch_failed"
	ErrInvalidRequest     ErrorType = "invalid_request_error"
	ErrRateLimit          ErrorType = "rate_limit_error"
	ErrStore              ErrorType = "store_error"
)

// NewCredentialMissingError reports that no usable credential could be
// resolved at connect time.
func NewCredentialMissingError() *Error {
	return &Error{
		Type:    ErrCredentialMissing,
		Message: "no usable API credential is configured",
	}
}

// NewDeviceAccessDeniedError wraps a microphone acquisition failure.
func NewDeviceAccessDeniedError(cause error) *Error {
	return &Error{
		Type:    ErrDeviceAccessDenied,
		Message: "microphone access was denied or the device failed",
		Cause:   cause,
	}
}

// NewTransportOpenError wraps a failure to establish the duplex connection.
func NewTransportOpenError(cause error) *Error {
	return &Error{
		Type:    ErrTransportOpen,
		Message: fmt.Sprintf("could not open realtime connection: %v", cause),
		Cause:   cause,
	}
}

// NewTransportError wraps a mid-session transport failure or remote close.
func NewTransportError(cause error) *Error {
	return &Error{
		Type:    ErrTransport,
		Message: fmt.Sprintf("realtime connection failed: %v", cause),
		Cause:   cause,
	}
}

// NewToolExecutionError wraps a collaborator failure inside a tool call. It is
// contained to that call's result payload and never aborts the batch.
func NewToolExecutionError(message string) *Error {
	return &Error{
		Type:    ErrToolExecution,
		Message: message,
	}
}

// NewFetchError wraps a news/weather/search collaborator failure.
func NewFetchError(what string, cause error) *Error {
	return &Error{
		Type:    ErrFetch,
		Message: fmt.Sprintf("%s fetch failed: %v", what, cause),
		Cause:   cause,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewStoreError wraps a persistence failure with the collaborator's message.
func NewStoreError(op string, cause error) *Error {
	return &Error{
		Type:    ErrStore,
		Message: fmt.Sprintf("%s: %v", op, cause),
		Cause:   cause,
	}
}

// TypeOf extracts the ErrorType from err, or "" when err is not a *Error.
func TypeOf(err error) ErrorType {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ""
}
