package errors

import (
	"fmt"
)

// Common error creators for frequent use cases

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewCacheError creates a local cache error with operation context
func NewCacheError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeCacheQuery, fmt.Sprintf("cache %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Local cache operation failed")
}

// NewBackendError creates an error for a backend store call. Server-side
// and throttling failures are marked retryable so read paths can swallow
// them and let the next poll or refetch self-heal.
func NewBackendError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeBackendAPI, "backend call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 || statusCode == 0 {
		appErr.Retryable = true
	}
	return appErr
}

// NewRealtimeError creates a change-stream error
func NewRealtimeError(err error) *AppError {
	return WrapRetryable(err, ErrCodeRealtimeStream, "change-event stream failed").
		WithUserMessage("Connection lost, reconnecting")
}

// NewPermissionError creates a permission error. Permission failures abort
// the operation with no state mutation.
func NewPermissionError(capability string) *AppError {
	return New(ErrCodePermissionDenied, fmt.Sprintf("%s permission denied", capability)).
		WithContext("capability", capability).
		WithUserMessage(fmt.Sprintf("Permission required: %s", capability))
}

// NewMediaError creates a media capture/upload error
func NewMediaError(operation string, err error) *AppError {
	code := ErrCodeMediaUpload
	if operation == "capture" || operation == "record" {
		code = ErrCodeMediaCapture
	}
	return Wrap(err, code, fmt.Sprintf("media %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Voice message failed, tap to retry")
}

// NewSendError creates a write-path error surfaced to the user with an
// actionable retry.
func NewSendError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeBackendAPI, fmt.Sprintf("%s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Message not sent, tap to retry")
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}
