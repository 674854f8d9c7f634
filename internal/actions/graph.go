package actions

import (
	"context"
	"errors"
	"net/http"

	"github.com/arley101/dynamics-gateway/internal/auth"
)

// The profile_* actions are thin Graph passthroughs. They exist to exercise
// the authenticated-client calling convention; the bulk of the vendor action
// catalog is registered by deployments on top of NewDefaultRegistry.

// ProfileGetMe implements profile_get_me: GET /me.
func ProfileGetMe(ctx context.Context, client *auth.Client, params map[string]any) (Result, error) {
	resp, err := client.Get(ctx, "/me")
	if err != nil {
		return graphErrorResult("profile_get_me", err), nil
	}
	if resp.StatusCode >= 400 {
		return graphStatusResult("profile_get_me", resp), nil
	}
	payload, err := resp.JSON()
	if err != nil {
		return Result{}, err
	}
	return JSON(map[string]any{
		"status": "success",
		"data":   payload,
	}), nil
}

// ProfileGetMyPhoto implements profile_get_my_photo: GET /me/photo/$value,
// returning the raw JPEG bytes. The dispatcher's binary path serves them
// inline as image/jpeg because the action name contains "photo".
func ProfileGetMyPhoto(ctx context.Context, client *auth.Client, params map[string]any) (Result, error) {
	resp, err := client.Get(ctx, "/me/photo/$value")
	if err != nil {
		return graphErrorResult("profile_get_my_photo", err), nil
	}
	if resp.StatusCode >= 400 {
		return graphStatusResult("profile_get_my_photo", resp), nil
	}
	return Binary(resp.Body), nil
}

// graphErrorResult maps client-level failures to error results. A missing
// credential is reported as 401; everything else as 502 toward Graph.
func graphErrorResult(action string, err error) Result {
	if errors.Is(err, auth.ErrNoCredential) {
		return Result{
			Kind:       KindError,
			HTTPStatus: http.StatusUnauthorized,
			Action:     action,
			Message:    "Credencial no disponible para llamar a Microsoft Graph.",
			Details:    err.Error(),
		}
	}
	return Result{
		Kind:       KindError,
		HTTPStatus: http.StatusBadGateway,
		Action:     action,
		Message:    "Error llamando a Microsoft Graph.",
		Details:    err.Error(),
	}
}

// graphStatusResult propagates a non-2xx Graph response as an error result,
// keeping the vendor status when it is a valid error code.
func graphStatusResult(action string, resp *auth.Response) Result {
	status := resp.StatusCode
	if status < 400 || status > 599 {
		status = http.StatusBadGateway
	}
	res := Result{
		Kind:       KindError,
		HTTPStatus: status,
		Action:     action,
		Message:    "Microsoft Graph devolvió un error.",
	}
	if payload, err := resp.JSON(); err == nil {
		if ge, ok := payload["error"].(map[string]any); ok {
			if code, ok := ge["code"].(string); ok {
				res.APIErrorCode = code
			}
			if msg, ok := ge["message"].(string); ok && msg != "" {
				res.Message = msg
			}
			res.Details = ge
		}
	}
	return res
}
