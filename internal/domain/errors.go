// Package domain provides canonical error types shared across the reviewer.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure by how it affects a session.
type ErrorKind string

const (
	// KindInputValidation is a malformed or incomplete client request.
	// It closes the connection and is never retried.
	KindInputValidation ErrorKind = "input_validation"

	// KindUpstreamFetch is a transcript source failure (unavailable video,
	// no captions, transport fault). It becomes an error-shaped result.
	KindUpstreamFetch ErrorKind = "upstream_fetch"

	// KindAnalysisShape is an analysis result that does not match the
	// expected output shape. It stays inside the stage.
	KindAnalysisShape ErrorKind = "analysis_shape"

	// KindCacheStorage is a transcript cache read/write fault. Reads
	// degrade to a miss and writes are logged.
	KindCacheStorage ErrorKind = "cache_storage"

	// KindTransport is a client disconnect or send failure.
	KindTransport ErrorKind = "transport"
)

// Error is a classified error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain,
// or the empty kind.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// APIType identifies the upstream analysis API.
type APIType string

const (
	APITypeOpenAI    APIType = "openai"
	APITypeAnthropic APIType = "anthropic"
)

// ErrorType represents the category of an upstream API error.
type ErrorType string

const (
	ErrorTypeInvalidRequest ErrorType = "invalid_request"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypePermission     ErrorType = "permission"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeOverloaded     ErrorType = "overloaded"
	ErrorTypeServer         ErrorType = "server"
	ErrorTypeContextLength  ErrorType = "context_length"
)

// APIError is a canonical error returned by the analysis API clients.
type APIError struct {
	// Type is the category of error
	Type ErrorType `json:"type"`

	// Code is the upstream-specific code, if any
	Code string `json:"code,omitempty"`

	// Message is the human-readable error message
	Message string `json:"message"`

	// StatusCode is the HTTP status code returned upstream
	StatusCode int `json:"-"`

	// SourceAPI indicates which API the error originated from
	SourceAPI APIType `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Retryable reports whether the upstream suggests retrying later.
func (e *APIError) Retryable() bool {
	return e.Type == ErrorTypeRateLimit || e.Type == ErrorTypeOverloaded || e.Type == ErrorTypeServer
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{
		Type:    errType,
		Message: message,
	}
}

// ErrorTypeFromStatus maps an HTTP status code to an error type.
func ErrorTypeFromStatus(status int) ErrorType {
	switch {
	case status == 400 || status == 422:
		return ErrorTypeInvalidRequest
	case status == 401:
		return ErrorTypeAuthentication
	case status == 403:
		return ErrorTypePermission
	case status == 404:
		return ErrorTypeNotFound
	case status == 429:
		return ErrorTypeRateLimit
	case status == 503 || status == 529:
		return ErrorTypeOverloaded
	default:
		return ErrorTypeServer
	}
}
