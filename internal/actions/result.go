// Package actions defines the handler calling convention of the gateway: a
// named action receives the (possibly nil) authenticated client plus a
// loosely-typed parameter bag and returns exactly one Result variant. The
// dispatcher never inspects dynamic types; handlers must pick a variant.
package actions

import (
	"context"
	"net/http"

	"github.com/arley101/dynamics-gateway/internal/auth"
)

// ResultKind discriminates the Result union.
type ResultKind int

// The four result variants a handler may produce.
const (
	// KindJSON is a structured payload rendered as a JSON response.
	KindJSON ResultKind = iota
	// KindBinary is an opaque byte payload rendered as a file download.
	KindBinary
	// KindCSV is CSV text rendered as a text/csv attachment.
	KindCSV
	// KindError is a handler-reported error envelope.
	KindError
)

// Result is the tagged union a handler returns. Construct values through
// JSON, Binary, CSV and Errorf/ErrorResult; zero values are not meaningful.
type Result struct {
	Kind ResultKind

	// Payload is set for KindJSON.
	Payload map[string]any
	// Data is set for KindBinary.
	Data []byte
	// Text is set for KindCSV.
	Text string

	// HTTPStatus optionally overrides the response status. For KindJSON it
	// must be 2xx (else the dispatcher forces 200); for KindError it must be
	// 4xx/5xx (else the dispatcher clamps to 500). Zero means default.
	HTTPStatus int

	// Error fields, set for KindError.
	Message      string
	Action       string // action that produced the error, when it differs
	Details      any
	APIErrorCode string // vendor error code (e.g. a Graph error code)
}

// Handler implements one action's business logic. The client may be nil when
// credential bootstrap failed; handlers that need it must report the absence
// as an error result rather than panic.
type Handler func(ctx context.Context, client *auth.Client, params map[string]any) (Result, error)

// JSON builds a success result with the default 200 status.
func JSON(payload map[string]any) Result {
	return Result{Kind: KindJSON, Payload: payload, HTTPStatus: http.StatusOK}
}

// JSONStatus builds a success result with an explicit 2xx status.
func JSONStatus(status int, payload map[string]any) Result {
	return Result{Kind: KindJSON, Payload: payload, HTTPStatus: status}
}

// Binary builds a binary download result.
func Binary(data []byte) Result {
	return Result{Kind: KindBinary, Data: data}
}

// CSV builds a CSV text result.
func CSV(text string) Result {
	return Result{Kind: KindCSV, Text: text}
}

// ErrorResult builds a handler-reported error with an explicit status.
func ErrorResult(status int, message string) Result {
	return Result{Kind: KindError, HTTPStatus: status, Message: message}
}

// WithDetails attaches a detail payload to an error result.
func (r Result) WithDetails(details any) Result {
	r.Details = details
	return r
}

// WithAPIErrorCode attaches a vendor error code to an error result.
func (r Result) WithAPIErrorCode(code string) Result {
	r.APIErrorCode = code
	return r
}

// IsError reports whether the result is the error variant.
func (r Result) IsError() bool { return r.Kind == KindError }

// StringParam reads a string parameter, tolerating absence and non-string
// values.
func StringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
