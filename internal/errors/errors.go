package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodePreconditionFailed ErrorCode = "PRECONDITION_FAILED"

	// Signature request lifecycle
	ErrCodeExpired          ErrorCode = "EXPIRED"
	ErrCodeAlreadyCompleted ErrorCode = "ALREADY_COMPLETED"
	ErrCodePhoneMismatch    ErrorCode = "PHONE_MISMATCH"

	// Verification codes
	ErrCodeNotRequested ErrorCode = "CODE_NOT_REQUESTED"
	ErrCodeCodeMismatch ErrorCode = "CODE_MISMATCH"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeGateway  ErrorCode = "GATEWAY_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func InvalidToken(message string) *AppError {
	return New(ErrCodeInvalidToken, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func PreconditionFailed(message string) *AppError {
	return New(ErrCodePreconditionFailed, message)
}

func Expired() *AppError {
	return New(ErrCodeExpired, "Signature request has expired")
}

func AlreadyCompleted() *AppError {
	return New(ErrCodeAlreadyCompleted, "Signature request is already completed")
}

// PhoneMismatch carries the requester name so the signer can be told
// whose request the rejected phone number belongs to.
func PhoneMismatch(requesterName string) *AppError {
	return New(ErrCodePhoneMismatch, "Phone number does not match the signer on record").
		WithDetails(map[string]string{"requesterName": requesterName})
}

func CodeNotRequested() *AppError {
	return New(ErrCodeNotRequested, "No verification code was requested for this phone number")
}

func CodeExpired() *AppError {
	return New(ErrCodeExpired, "Verification code has expired")
}

func CodeMismatch() *AppError {
	return New(ErrCodeCodeMismatch, "Verification code does not match")
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

// Gateway wraps an SMS/Kakao provider failure, keeping the provider's
// own HTTP status and message available for logging and fallback decisions.
func Gateway(provider string, status int, providerMessage string) *AppError {
	return New(ErrCodeGateway, fmt.Sprintf("%s delivery failed", provider)).
		WithDetails(map[string]any{"status": status, "providerMessage": providerMessage})
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
