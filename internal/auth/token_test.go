package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type countingSource struct {
	calls atomic.Int64
	err   error
}

func (s *countingSource) Token(ctx context.Context, scope string) (string, error) {
	n := s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return fmt.Sprintf("tok-%s-%d", scope, n), nil
}

func TestCredentials_Complete(t *testing.T) {
	cases := []struct {
		creds Credentials
		want  bool
	}{
		{Credentials{}, false},
		{Credentials{ClientID: "c", ClientSecret: "s"}, false}, // needs tenant or URL
		{Credentials{TenantID: "t", ClientID: "c", ClientSecret: "s"}, true},
		{Credentials{TokenURL: "http://x/token", ClientID: "c", ClientSecret: "s"}, true},
		{Credentials{TenantID: "t", ClientSecret: "s"}, false},
	}
	for i, tc := range cases {
		if got := tc.creds.Complete(); got != tc.want {
			t.Fatalf("case %d: Complete() = %v; want %v", i, got, tc.want)
		}
	}
}

func TestCredentials_tokenURL(t *testing.T) {
	c := Credentials{TenantID: "tid"}
	want := "https://login.microsoftonline.com/tid/oauth2/v2.0/token"
	if got := c.tokenURL(); got != want {
		t.Fatalf("tokenURL() = %q; want %q", got, want)
	}
	c.TokenURL = "http://local/token"
	if got := c.tokenURL(); got != "http://local/token" {
		t.Fatalf("tokenURL override failed: %q", got)
	}
}

func TestClientCredentialsSource_Token(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("token endpoint expects POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("scope"); got != "scope.a" {
			t.Fatalf("scope = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	src := NewClientCredentialsSource(Credentials{
		ClientID:     "cid",
		ClientSecret: "sec",
		TokenURL:     srv.URL,
	})
	tok, err := src.Token(context.Background(), "scope.a")
	if err != nil {
		t.Fatalf("Token error: %v", err)
	}
	if tok != "at-123" {
		t.Fatalf("token = %q", tok)
	}
}

func TestClientCredentialsSource_TokenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	src := NewClientCredentialsSource(Credentials{ClientID: "c", ClientSecret: "bad", TokenURL: srv.URL})
	if _, err := src.Token(context.Background(), "scope.a"); err == nil {
		t.Fatalf("expected error for rejected credentials")
	}
}

func TestCache_ServesCachedUntilStale(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, time.Hour, 10*time.Minute)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()

	tok1, err := c.Token(ctx, "s")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	tok2, _ := c.Token(ctx, "s")
	if tok1 != tok2 {
		t.Fatalf("second call should be served from cache: %q vs %q", tok1, tok2)
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("source calls = %d; want 1", got)
	}

	// Just before the margin kicks in: still cached.
	now = now.Add(50*time.Minute - time.Second)
	if tok3, _ := c.Token(ctx, "s"); tok3 != tok1 {
		t.Fatalf("token refreshed too early")
	}

	// Inside the refresh margin: stale, refetch.
	now = now.Add(2 * time.Second)
	tok4, _ := c.Token(ctx, "s")
	if tok4 == tok1 {
		t.Fatalf("token should refresh once inside the margin")
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("source calls = %d; want 2", got)
	}
}

func TestCache_PerScopeEntries(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, time.Hour, 0)
	ctx := context.Background()

	a, _ := c.Token(ctx, "scope.a")
	b, _ := c.Token(ctx, "scope.b")
	if a == b {
		t.Fatalf("distinct scopes should carry distinct tokens")
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("source calls = %d; want 2", got)
	}
}

func TestCache_Invalidate(t *testing.T) {
	src := &countingSource{}
	c := NewCache(src, time.Hour, 0)
	ctx := context.Background()

	tok1, _ := c.Token(ctx, "s")
	c.Invalidate("s")
	tok2, _ := c.Token(ctx, "s")
	if tok1 == tok2 {
		t.Fatalf("Invalidate should force a refetch")
	}
}

func TestCache_ErrorNotCached(t *testing.T) {
	src := &countingSource{err: fmt.Errorf("idp down")}
	c := NewCache(src, time.Hour, 0)
	ctx := context.Background()

	if _, err := c.Token(ctx, "s"); err == nil {
		t.Fatalf("expected error from source")
	}
	src.err = nil
	if _, err := c.Token(ctx, "s"); err != nil {
		t.Fatalf("recovery fetch failed: %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("source calls = %d; want 2", got)
	}
}
