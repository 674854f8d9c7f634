package openapi

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDocument_PinnedTo303(t *testing.T) {
	doc := New(Info{BasePath: "/api/v1"}).Spec()
	if doc.OpenAPI != "3.0.3" {
		t.Fatalf("OpenAPI version = %q; want 3.0.3", doc.OpenAPI)
	}
}

func TestDocument_DefaultsAndCaching(t *testing.T) {
	d := New(Info{})
	if d.info.Title == "" || d.info.Version == "" {
		t.Fatalf("defaults not applied: %+v", d.info)
	}
	// Spec() builds once and returns the same instance.
	if d.Spec() != d.Spec() {
		t.Fatalf("Spec() should cache the built document")
	}
}

func TestDocument_DynamicsOperation(t *testing.T) {
	doc := New(Info{Title: "t", Version: "2.0.0", BasePath: "/api/v1"}).Spec()

	item := doc.Paths.Find("/api/v1/dynamics")
	if item == nil || item.Post == nil {
		t.Fatalf("POST /api/v1/dynamics missing")
	}
	op := item.Post
	if op.OperationID != "processDynamicAction" {
		t.Fatalf("operation id = %q", op.OperationID)
	}
	if op.RequestBody == nil || !op.RequestBody.Value.Required {
		t.Fatalf("request body must be required")
	}

	schema := op.RequestBody.Value.Content.Get("application/json").Schema.Value
	if len(schema.Required) != 1 || schema.Required[0] != "action" {
		t.Fatalf("action must be the only required property: %v", schema.Required)
	}
	if _, ok := schema.Properties["params"]; !ok {
		t.Fatalf("params property missing")
	}

	for _, code := range []string{"200", "400", "401", "422", "429", "500"} {
		if op.Responses.Value(code) == nil {
			t.Fatalf("response %s missing", code)
		}
	}
	if op.Security == nil || len(*op.Security) == 0 {
		t.Fatalf("bearer security requirement missing")
	}
}

func TestDocument_SerializesWithBearerScheme(t *testing.T) {
	doc := New(Info{BasePath: "/api/v1"}).Spec()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out := string(raw)
	if !strings.Contains(out, `"openapi":"3.0.3"`) {
		t.Fatalf("serialized version missing: %s", out[:120])
	}
	if !strings.Contains(out, `"bearerAuth"`) || !strings.Contains(out, `"bearer"`) {
		t.Fatalf("bearer security scheme missing from serialized doc")
	}
}
