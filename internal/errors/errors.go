// Package errors provides a typed error taxonomy for the sentinel core,
// covering schema violations, transient broker errors, judge timeouts,
// degraded-mode conditions, and fatal startup errors.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies an AppError for logging, metrics, and HTTP mapping.
type ErrorType string

const (
	ErrorTypeSchemaViolation   ErrorType = "schema_violation"
	ErrorTypeBadTimestamp      ErrorType = "bad_timestamp"
	ErrorTypeUnknownSchema     ErrorType = "unknown_schema"
	ErrorTypeTransientBroker   ErrorType = "transient_broker"
	ErrorTypeJudgeTimeout      ErrorType = "judge_timeout"
	ErrorTypeJudgeProvider     ErrorType = "judge_provider_error"
	ErrorTypeCacheUnavailable  ErrorType = "cache_unavailable"
	ErrorTypeRegistryUnavail   ErrorType = "registry_unavailable"
	ErrorTypeStoreWriteFailed  ErrorType = "store_write_failed"
	ErrorTypeFatalConfig       ErrorType = "fatal_config"
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeInternal          ErrorType = "internal"
)

// statusByType maps an ErrorType to the HTTP status the admin surface
// reports when an internal operation fails and is surfaced externally.
var statusByType = map[ErrorType]int{
	ErrorTypeSchemaViolation:  http.StatusBadRequest,
	ErrorTypeBadTimestamp:     http.StatusBadRequest,
	ErrorTypeUnknownSchema:    http.StatusBadRequest,
	ErrorTypeValidation:       http.StatusBadRequest,
	ErrorTypeTransientBroker:  http.StatusServiceUnavailable,
	ErrorTypeJudgeTimeout:     http.StatusGatewayTimeout,
	ErrorTypeJudgeProvider:    http.StatusBadGateway,
	ErrorTypeCacheUnavailable: http.StatusServiceUnavailable,
	ErrorTypeRegistryUnavail:  http.StatusServiceUnavailable,
	ErrorTypeStoreWriteFailed: http.StatusInternalServerError,
	ErrorTypeFatalConfig:      http.StatusInternalServerError,
	ErrorTypeInternal:         http.StatusInternalServerError,
}

// AppError is a typed, wrappable error carrying enough context to decide
// retry/poison/degrade policy without inspecting error strings.
type AppError struct {
	Type       ErrorType
	Message    string
	Details    string
	StatusCode int
	Cause      error
}

func New(t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusFor(t),
	}
}

func Newf(t ErrorType, format string, args ...any) *AppError {
	return New(t, fmt.Sprintf(format, args...))
}

func Wrap(cause error, t ErrorType, message string) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusFor(t),
		Cause:      cause,
	}
}

func Wrapf(cause error, t ErrorType, format string, args ...any) *AppError {
	return Wrap(cause, t, fmt.Sprintf(format, args...))
}

func statusFor(t ErrorType) int {
	if s, ok := statusByType[t]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetailsf(format string, args ...any) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// IsType reports whether err is an *AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type == t
	}
	return false
}

// GetType returns the ErrorType of err, or ErrorTypeInternal if err is not
// an *AppError.
func GetType(err error) ErrorType {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Type
	}
	return ErrorTypeInternal
}

// GetStatusCode returns the HTTP status associated with err.
func GetStatusCode(err error) int {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return http.StatusInternalServerError
}

// Retryable reports whether err represents a condition the caller should
// back off and retry rather than poison or fail fast.
func Retryable(err error) bool {
	switch GetType(err) {
	case ErrorTypeTransientBroker, ErrorTypeCacheUnavailable, ErrorTypeRegistryUnavail:
		return true
	default:
		return false
	}
}

// Poison reports whether err represents a message that can never succeed
// and should be ack-dropped and counted rather than retried.
func Poison(err error) bool {
	switch GetType(err) {
	case ErrorTypeSchemaViolation, ErrorTypeBadTimestamp, ErrorTypeUnknownSchema:
		return true
	default:
		return false
	}
}
