package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes used across the service.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConfigMissing      = "CONFIG_MISSING"
	CodeAuthFailure        = "AUTH_FAILURE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeGroupNotFound      = "GROUP_NOT_FOUND"
	CodeJobAlreadyRunning  = "JOB_ALREADY_RUNNING"
	CodePersistenceCorrupt = "PERSISTENCE_CORRUPT"
	CodeDeliveryFailure    = "DELIVERY_FAILURE"
)

// AppError represents an application error
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying error for errors.Is/As chains.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *AppError {
	return &AppError{Code: CodeValidation, Message: message, Err: err}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: err}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, err error) *AppError {
	return &AppError{Code: CodeNotFound, Message: message, Err: err}
}

// NewConfigMissingError signals that directory or relay credentials are not
// configured. Read paths surface this as an empty result, not a failure.
func NewConfigMissingError(message string) *AppError {
	return &AppError{Code: CodeConfigMissing, Message: message}
}

// NewAuthFailureError carries the identity provider's own error text.
func NewAuthFailureError(message string, err error) *AppError {
	return &AppError{Code: CodeAuthFailure, Message: message, Err: err}
}

// NewGroupNotFoundError signals that zero groups matched a configured name.
func NewGroupNotFoundError(name string) *AppError {
	return &AppError{Code: CodeGroupNotFound, Message: fmt.Sprintf("group '%s' does not exist in this tenant", name)}
}

// NewJobAlreadyRunningError signals the delivery-job concurrency guard tripped.
func NewJobAlreadyRunningError() *AppError {
	return &AppError{Code: CodeJobAlreadyRunning, Message: "another job is currently in progress"}
}

// NewDeliveryFailureError records a single-recipient send failure.
func NewDeliveryFailureError(recipient string, err error) *AppError {
	return &AppError{Code: CodeDeliveryFailure, Message: fmt.Sprintf("delivery to %s failed", recipient), Err: err}
}

// CodeOf returns the AppError code of err, or CodeInternal for plain errors.
func CodeOf(err error) string {
	var ae *AppError
	if stderrors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given application error code.
func Is(err error, code string) bool {
	return CodeOf(err) == code
}
