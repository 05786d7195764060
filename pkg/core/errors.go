// Package core provides the error, retry and HTTP helpers shared by the
// routing providers, the trip planner and the serving layers.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrInvalidLatitude  ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude ErrorCode = "INVALID_LONGITUDE"
	ErrEmptyParameter   ErrorCode = "EMPTY_PARAMETER"
	ErrMissingParameter ErrorCode = "MISSING_PARAMETER"
	ErrInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrUnknownMode      ErrorCode = "UNKNOWN_MODE"

	// Service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"

	// Data errors
	ErrNoResults       ErrorCode = "NO_RESULTS"
	ErrRouteNotFound   ErrorCode = "ROUTE_NOT_FOUND"
	ErrAddressNotFound ErrorCode = "ADDRESS_NOT_FOUND"
	ErrNoFeasibleRoute ErrorCode = "NO_FEASIBLE_ROUTE"
	ErrParseError      ErrorCode = "PARSE_ERROR"
	ErrInternalError   ErrorCode = "INTERNAL_ERROR"
)

// Error is a coded error with optional guidance for the caller.
type Error struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Query       string   `json:"query,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
	Status      int      `json:"-"`

	cause error
}

// Error implements the error interface
func (e Error) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is matches another *Error with the same code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// Retryable reports whether the failure is transient.
func (e *Error) Retryable() bool {
	switch ErrorCode(e.Code) {
	case ErrServiceUnavailable, ErrServiceTimeout, ErrRateLimit, ErrNetworkError, ErrInternalError:
		return true
	default:
		return false
	}
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    string(code),
		Message: message,
	}
}

// Wrap creates a new Error that unwraps to cause.
func Wrap(cause error, code ErrorCode, message string) *Error {
	e := NewError(code, message)
	e.cause = cause
	return e
}

// WithQuery adds query information to the error
func (e *Error) WithQuery(query string) *Error {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// ToMCPResult converts the error to an MCP tool result
func (e *Error) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}

	return mcp.NewToolResultError(string(errorJSON))
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *Error {
	var code ErrorCode
	var guidance string

	switch {
	case statusCode == http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Please try again later."
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		code = ErrInvalidInput
		guidance = "The service rejected the credentials. Check ORS_API_KEY."
	case statusCode == http.StatusNotFound:
		code = ErrRouteNotFound
		guidance = "The service found no result for the given locations."
	case statusCode >= 400 && statusCode < 500:
		code = ErrInvalidInput
		guidance = "The request was invalid. Check your parameters and try again."
	case statusCode == http.StatusInternalServerError:
		code = ErrInternalError
		guidance = "The server encountered an error. This is likely temporary, please try again later."
	default:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	}

	e := NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
	e.Status = statusCode
	return e
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *Error {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}

// IsRetryable classifies err as transient. Coded errors decide for
// themselves, network errors are transient and cancellation never is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Retryable()
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// CodeOf returns the code of the first *Error in err's chain.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return ErrorCode(coded.Code)
	}
	return ""
}
