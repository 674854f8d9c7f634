// Dispatch HTTP handler.
//
// This file exposes the single entry point of the gateway:
//   - POST /dynamics: resolve an action name against the registry, invoke
//     its handler, and normalize the result into exactly one of: JSON success
//     body, JSON error body, raw binary download, or CSV text attachment.
//
// The handler is transport-thin: credential bootstrap, registry resolution,
// and result normalization live here; all business logic lives behind the
// actions.Handler calling convention.
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arley101/dynamics-gateway/internal/actions"
	"github.com/arley101/dynamics-gateway/internal/apperr"
	"github.com/arley101/dynamics-gateway/internal/auth"
	"github.com/arley101/dynamics-gateway/internal/domain"
	"github.com/arley101/dynamics-gateway/internal/http/middleware"
	"github.com/arley101/dynamics-gateway/internal/utils"
)

// Handlers groups the HTTP endpoints of the gateway. The registry and the
// authenticated client are injected at construction; there is no ambient
// global state.
type Handlers struct {
	registry *actions.Registry
	client   *auth.Client
}

// New constructs a Handlers instance bound to the given registry and
// (possibly nil) authenticated client.
func New(registry *actions.Registry, client *auth.Client) *Handlers {
	return &Handlers{registry: registry, client: client}
}

// Dispatch implements POST /dynamics.
//
// Flow:
//  1. Bind the {action, params} body; malformed bodies are 422 validation
//     errors in the taxonomy envelope.
//  2. Pre-validate the ambient credential. Failures are logged and leave the
//     client unset for this request, never fatal, so actions that do not
//     need the vendor keep working.
//  3. Resolve the action; unknown names are 400 dispatch errors echoing the
//     literal name.
//  4. Invoke the handler and normalize its Result variant. Panics and
//     unexpected errors become 500 dispatch errors carrying the error type
//     name, never a stack trace.
func (h *Handlers) Dispatch(c *gin.Context) {
	var req domain.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, apperr.Validation("Request validation failed").
			WithDetails(map[string]any{"binding_error": err.Error()}))
		return
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}

	lg := middleware.LoggerFrom(c)
	middleware.SetAuditAction(c, req.Action, req.Params)

	// Credential bootstrap: validate the ambient credential against the
	// default scope, tolerating failure.
	client := h.client
	if client != nil {
		if err := client.Preflight(c.Request.Context()); err != nil {
			lg.Warn().Err(err).Str("action", req.Action).
				Msg("credential preflight failed; dispatching without authenticated client")
			client = nil
		}
	}

	handler, ok := h.registry.Resolve(req.Action)
	if !ok {
		lg.Warn().Str("action", req.Action).Msg("unknown action")
		middleware.ObserveAction(req.Action, "error")
		failDispatch(c, http.StatusBadRequest, req.Action,
			fmt.Sprintf("La acción '%s' no es válida o no está implementada en el backend.", req.Action),
			nil, "")
		return
	}

	lg.Info().Str("action", req.Action).Int("param_count", len(req.Params)).Msg("dispatching action")

	result, err := invoke(c, handler, client, req.Params)
	if err != nil {
		lg.Error().Err(err).Str("action", req.Action).Msg("action execution failed")
		middleware.ObserveAction(req.Action, "error")
		failDispatch(c, http.StatusInternalServerError, req.Action,
			"Error interno del servidor al ejecutar la acción.",
			fmt.Sprintf("%T: %v", err, err), "")
		return
	}

	h.renderResult(c, req, result)
}

// invoke runs the handler, converting panics into errors so the dispatch
// layer treats them like any other unexpected fault.
func invoke(c *gin.Context, handler actions.Handler, client *auth.Client, params map[string]any) (res actions.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return handler(c.Request.Context(), client, params)
}

// renderResult maps a Result variant onto the HTTP response.
func (h *Handlers) renderResult(c *gin.Context, req domain.ActionRequest, result actions.Result) {
	lg := middleware.LoggerFrom(c)

	switch result.Kind {
	case actions.KindBinary:
		middleware.ObserveAction(req.Action, "success")
		lg.Info().Str("action", req.Action).Int("bytes", len(result.Data)).Msg("action returned binary payload")
		writeBinary(c, req, result.Data)

	case actions.KindCSV:
		middleware.ObserveAction(req.Action, "success")
		lg.Info().Str("action", req.Action).Int("chars", len(result.Text)).Msg("action returned CSV text")
		c.Header("Content-Disposition", `attachment; filename="memory_export.csv"`)
		c.Data(http.StatusOK, "text/csv", []byte(result.Text))

	case actions.KindError:
		status := result.HTTPStatus
		if status < 400 || status > 599 {
			lg.Warn().Str("action", req.Action).Int("http_status", result.HTTPStatus).
				Msg("error result carried non-error status; forcing 500")
			status = http.StatusInternalServerError
		}
		action := result.Action
		if action == "" {
			action = req.Action
		}
		message := result.Message
		if message == "" {
			message = "Error desconocido en la ejecución de la acción."
		}
		middleware.ObserveAction(req.Action, "error")
		failDispatch(c, status, action, message, result.Details, result.APIErrorCode)

	case actions.KindJSON:
		status := result.HTTPStatus
		if status < 200 || status > 299 {
			if status != 0 {
				lg.Warn().Str("action", req.Action).Int("http_status", status).
					Msg("success result carried non-2xx status; using 200")
			}
			status = http.StatusOK
		}
		middleware.ObserveAction(req.Action, "success")
		payload := result.Payload
		if payload == nil {
			payload = map[string]any{}
		}
		ok(c, status, payload)

	default:
		lg.Error().Str("action", req.Action).Int("kind", int(result.Kind)).
			Msg("action returned an unexpected result kind")
		middleware.ObserveAction(req.Action, "error")
		failDispatch(c, http.StatusInternalServerError, req.Action,
			"Error interno del servidor: La acción devolvió un tipo de resultado inesperado.",
			nil, "")
	}
}

// writeBinary serves a binary payload as a download. Photo actions are served
// inline as JPEG; everything else infers filename and media type from the
// request parameters.
func writeBinary(c *gin.Context, req domain.ActionRequest, data []byte) {
	if strings.Contains(strings.ToLower(req.Action), "photo") {
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", req.Action+".jpg"))
		c.Data(http.StatusOK, "image/jpeg", data)
		return
	}

	filename := utils.SafeFilename(utils.FilenameHint(req.Params))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, utils.MediaTypeFor(filename), data)
}

// ListActions implements GET /actions: the registered action catalog, useful
// for external tool discovery.
func (h *Handlers) ListActions(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{
		"total":   h.registry.Len(),
		"actions": h.registry.Names(),
	})
}
