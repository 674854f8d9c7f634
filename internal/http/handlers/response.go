// Package handlers provides the HTTP handler implementations of the gateway.
//
// This file defines the standard response utilities used by the dispatch
// endpoint, including the structured error envelope and helpers for common
// HTTP patterns. The goal is to guarantee uniform responses for both success
// and failure cases, making the API predictable and machine-friendly.
//
// Two error shapes exist by contract:
//   - the dispatch envelope (ErrorResponse) carries action-level context and
//     mirrors what action handlers report;
//   - taxonomy errors raised outside dispatch (rate limit, panics, unknown
//     routes) use the apperr envelope.
//
// Example dispatch error response:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "status":      "error",
//	  "action":      "calendar_list_events",
//	  "message":     "La acción 'calendar_list_events' no es válida …",
//	  "http_status": 400,
//	  "correlation_id": "123e4567-e89b-12d3-a456-426614174000"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arley101/dynamics-gateway/internal/apperr"
	"github.com/arley101/dynamics-gateway/internal/http/middleware"
)

// ErrorResponse is the standardized dispatch error envelope.
//
// Fields:
//   - Status: always "error".
//   - Action: the action that was attempted, when known.
//   - Message: human-readable description, safe for display.
//   - HTTPStatus: echoes the response status for clients that drop headers.
//   - Details: optional technical payload reported by the handler.
//   - GraphErrorCode: vendor error code (Graph or other API), when reported.
//   - CorrelationID: echoed from X-Correlation-ID for log correlation.
type ErrorResponse struct {
	Status         string `json:"status"`
	Action         string `json:"action,omitempty"`
	Message        string `json:"message"`
	HTTPStatus     int    `json:"http_status"`
	Details        any    `json:"details,omitempty"`
	GraphErrorCode string `json:"graph_error_code,omitempty"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}

// failDispatch aborts the request with the dispatch error envelope and logs
// server-side errors with the request-scoped logger.
func failDispatch(c *gin.Context, status int, action, message string, details any, graphErrorCode string) {
	resp := ErrorResponse{
		Status:         "error",
		Action:         action,
		Message:        message,
		HTTPStatus:     status,
		Details:        details,
		GraphErrorCode: graphErrorCode,
		CorrelationID:  middleware.CorrelationIDFrom(c),
	}

	lg := middleware.LoggerFrom(c)
	if status >= http.StatusInternalServerError {
		lg.Error().
			Int("status", status).
			Str("action", action).
			Str("message", message).
			Msg("dispatch error")
	} else {
		lg.Warn().
			Int("status", status).
			Str("action", action).
			Str("message", message).
			Msg("dispatch error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail aborts the request with the apperr envelope. External packages (e.g.,
// router fallbacks) use this to return consistent taxonomy errors.
func Fail(c *gin.Context, e *apperr.Error) {
	env := e.ToEnvelope(middleware.CorrelationIDFrom(c))
	if e.Kind.Status() >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Str("code", e.Kind.Code()).
			Str("message", e.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(e.Kind.Status(), env)
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
