package actions

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arley101/dynamics-gateway/internal/auth"
)

type staticTokens struct{}

func (staticTokens) Token(ctx context.Context, scope string) (string, error) {
	return "test-token", nil
}

func graphTestClient(t *testing.T, handler http.HandlerFunc) *auth.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return auth.NewClient(staticTokens{}, auth.ClientOptions{BaseURL: srv.URL})
}

func TestProfileGetMe_NilClient(t *testing.T) {
	res, err := ProfileGetMe(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("nil client must not surface an error: %v", err)
	}
	if res.Kind != KindError || res.HTTPStatus != http.StatusUnauthorized {
		t.Fatalf("expected 401 error result, got %+v", res)
	}
	if res.Action != "profile_get_me" {
		t.Fatalf("action = %q", res.Action)
	}
}

func TestProfileGetMe_Success(t *testing.T) {
	client := graphTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("authorization header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"displayName":"Ana","id":"u1"}`)
	})

	res, err := ProfileGetMe(context.Background(), client, nil)
	if err != nil {
		t.Fatalf("ProfileGetMe error: %v", err)
	}
	if res.Kind != KindJSON {
		t.Fatalf("kind = %v", res.Kind)
	}
	data, ok := res.Payload["data"].(map[string]any)
	if !ok || data["displayName"] != "Ana" {
		t.Fatalf("payload = %#v", res.Payload)
	}
}

func TestProfileGetMe_GraphErrorPropagation(t *testing.T) {
	client := graphTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":"ResourceNotFound","message":"User not found"}}`)
	})

	res, err := ProfileGetMe(context.Background(), client, nil)
	if err != nil {
		t.Fatalf("ProfileGetMe error: %v", err)
	}
	if res.Kind != KindError || res.HTTPStatus != http.StatusNotFound {
		t.Fatalf("expected 404 error result, got %+v", res)
	}
	if res.APIErrorCode != "ResourceNotFound" {
		t.Fatalf("api error code = %q", res.APIErrorCode)
	}
	if res.Message != "User not found" {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestProfileGetMyPhoto_Binary(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	client := graphTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/photo/$value" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpeg)
	})

	res, err := ProfileGetMyPhoto(context.Background(), client, nil)
	if err != nil {
		t.Fatalf("ProfileGetMyPhoto error: %v", err)
	}
	if res.Kind != KindBinary {
		t.Fatalf("kind = %v", res.Kind)
	}
	if len(res.Data) != len(jpeg) {
		t.Fatalf("payload bytes = %d; want %d", len(res.Data), len(jpeg))
	}
}

func TestGraphStatusResult_ClampsInvalidStatus(t *testing.T) {
	resp := &auth.Response{StatusCode: 302, Body: []byte(`{}`)}
	res := graphStatusResult("some_action", resp)
	if res.HTTPStatus != http.StatusBadGateway {
		t.Fatalf("non-error vendor status should map to 502, got %d", res.HTTPStatus)
	}
}
