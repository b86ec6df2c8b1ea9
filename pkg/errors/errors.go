package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies session failures for callers and the control API.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeAcquisition  ErrorCode = "ACQUISITION_FAILED"
	ErrCodeSignaling    ErrorCode = "SIGNALING_FAILED"
	ErrCodeTransport    ErrorCode = "TRANSPORT_FAILED"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a code, a human message, the HTTP status the control API
// should answer with, and the originating error.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewInvalidInputError reports a malformed caller request.
func NewInvalidInputError(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message, HTTPStatus: http.StatusBadRequest}
}

// NewAcquisitionError wraps a capture or transport-creation failure. These are
// never retried.
func NewAcquisitionError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeAcquisition, Message: message, HTTPStatus: http.StatusServiceUnavailable, Cause: cause}
}

// NewSignalingError wraps a failed round-trip to the streaming server.
func NewSignalingError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeSignaling, Message: message, HTTPStatus: http.StatusBadGateway, Cause: cause}
}

// NewTransportError wraps a peer-transport negotiation failure.
func NewTransportError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeTransport, Message: message, HTTPStatus: http.StatusInternalServerError, Cause: cause}
}

// NewInternalError reports an unexpected failure.
func NewInternalError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, Cause: cause}
}

// AsAppError extracts an AppError from anywhere in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
