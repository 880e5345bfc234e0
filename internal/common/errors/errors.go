package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeFetchFailed       ErrorCode = "FETCH_FAILED"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeMutationFailed    ErrorCode = "MUTATION_FAILED"
	ErrCodeGeocodingFailed   ErrorCode = "GEOCODING_FAILED"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeCacheUnavailable  ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Status    int                    `json:"status,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// IsUnauthorized reports whether err is the session-fatal 401 signal.
func IsUnauthorized(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == ErrCodeUnauthorized
	}
	return false
}

// IsRetryable reports whether err may succeed on a later attempt.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// NewUnauthorizedError creates the session-fatal authentication error.
// A 401 from any backend call tears the session down rather than being
// reported as a generic failure.
func NewUnauthorizedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnauthorized,
		Message:   "Session credential rejected by backend",
		Details:   details,
		Status:    401,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewFetchFailedError creates a retryable read-path error. Fetch failures are
// recovered locally: the cache entry stays absent and is retried on next access.
func NewFetchFailedError(route string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFetchFailed,
		Message:   "Backend fetch failed",
		Details:   fmt.Sprintf("route: %s, error: %s", route, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedResponseError creates a non-retryable decode/shape error.
func NewMalformedResponseError(route string, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   "Backend response failed shape validation",
		Details:   fmt.Sprintf("route: %s, %s", route, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMutationFailedError creates a surfaced mutation error carrying the
// backend status code and detail message when available.
func NewMutationFailedError(kind string, status int, detail string) *StandardError {
	if detail == "" {
		detail = "no detail provided"
	}
	return &StandardError{
		Code:      ErrCodeMutationFailed,
		Message:   fmt.Sprintf("Mutation %s rejected by backend", kind),
		Details:   detail,
		Status:    status,
		Retryable: status >= 500,
		Timestamp: time.Now().UTC(),
		Metadata:  map[string]interface{}{"mutation": kind},
	}
}

// NewGeocodingFailedError creates a locally-recovered geocoder error.
// Geocoding failures never block property creation.
func NewGeocodingFailedError(address string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeGeocodingFailed,
		Message:   "Address lookup failed",
		Details:   fmt.Sprintf("address: %s, error: %s", address, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-entity error.
func NewNotFoundError(entity, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", entity),
		Details:   fmt.Sprintf("id: %s", id),
		Status:    404,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a retryable cache-backend error.
func NewCacheUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Detail cache backend unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
