// Package apperr defines the closed error taxonomy used across the gateway.
// Every kind carries a fixed default HTTP status and a stable machine code;
// the HTTP layer converts all of them to a single wire envelope:
//
//	{
//	  "error":          "NOT_FOUND_ERROR",
//	  "message":        "resource not found",
//	  "correlation_id": "1f0c…",
//	  "details":        { … }
//	}
//
// Errors are plain values supporting errors.Is/As/Unwrap; services and
// handlers return them, the boundary translates them. No error is allowed to
// surface a stack trace to the client.
package apperr

import (
	"fmt"
	"net/http"
)

// Kind identifies one member of the closed taxonomy.
type Kind int

// The closed set of error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindExternalService
	KindRateLimit
	KindBusinessLogic
)

// Code returns the stable machine-readable code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindAuthentication:
		return "AUTHENTICATION_ERROR"
	case KindAuthorization:
		return "AUTHORIZATION_ERROR"
	case KindNotFound:
		return "NOT_FOUND_ERROR"
	case KindExternalService:
		return "EXTERNAL_SERVICE_ERROR"
	case KindRateLimit:
		return "RATE_LIMIT_ERROR"
	case KindBusinessLogic:
		return "BUSINESS_LOGIC_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// Status returns the default HTTP status for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindExternalService:
		return http.StatusBadGateway
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindBusinessLogic:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is a taxonomy member with a human-readable message, optional detail
// payload, and (for external-service errors) the origin service name plus the
// wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Service string // origin service for KindExternalService
	Err     error  // wrapped cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Service != "" {
		return fmt.Sprintf("external service error (%s): %s", e.Service, e.Message)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/As chains.
func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WithDetails attaches a detail payload and returns the receiver for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Validation builds a 422 validation error.
func Validation(message string) *Error { return New(KindValidation, message) }

// Authentication builds a 401 authentication error.
func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(KindAuthentication, message)
}

// Authorization builds a 403 authorization error.
func Authorization(message string) *Error {
	if message == "" {
		message = "Insufficient permissions"
	}
	return New(KindAuthorization, message)
}

// NotFound builds a 404 not-found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return New(KindNotFound, message)
}

// External builds a 502 external-service error carrying the origin service
// name and, optionally, the wrapped cause.
func External(service, message string, cause error) *Error {
	e := &Error{Kind: KindExternalService, Message: message, Service: service, Err: cause}
	e.Details = map[string]any{"service": service}
	if cause != nil {
		e.Details["original_error"] = cause.Error()
	}
	return e
}

// RateLimited builds a 429 rate-limit error.
func RateLimited(message string) *Error {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return New(KindRateLimit, message)
}

// Business builds a 400 business-logic error.
func Business(message string) *Error { return New(KindBusinessLogic, message) }

// Internal builds a 500 internal error.
func Internal(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return New(KindInternal, message)
}

// Envelope is the uniform wire shape for all error responses.
type Envelope struct {
	Code          string         `json:"error"`
	Message       string         `json:"message"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
}

// ToEnvelope converts the error to its wire representation, attaching the
// per-request correlation ID.
func (e *Error) ToEnvelope(correlationID string) Envelope {
	return Envelope{
		Code:          e.Kind.Code(),
		Message:       e.Message,
		CorrelationID: correlationID,
		Details:       e.Details,
	}
}
