package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	key := KeyByClientIP()(c)
	if !strings.HasPrefix(key, "ip:") || !strings.Contains(key, "203.0.113.9") {
		t.Fatalf("expected ip-based key; got %q", key)
	}
}

func TestNewFixedWindowLimiter_Coercion(t *testing.T) {
	rl := NewFixedWindowLimiter(0, 0, KeyByClientIP())
	if rl.limit != 1 {
		t.Fatalf("limit coercion failed, got %d", rl.limit)
	}
	if rl.window != time.Minute {
		t.Fatalf("window coercion failed, got %v", rl.window)
	}
}

func TestFixedWindow_AllowDenyAndRecovery(t *testing.T) {
	rl := NewFixedWindowLimiter(3, 60*time.Second, KeyByClientIP())

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	// Three requests inside the window are allowed, the fourth is rejected.
	for i := 0; i < 3; i++ {
		if !rl.allow("ip:1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
		now = now.Add(time.Second)
	}
	if rl.allow("ip:1.2.3.4") {
		t.Fatalf("fourth request within the window should be rejected")
	}

	// A different key has its own window.
	if !rl.allow("ip:5.6.7.8") {
		t.Fatalf("independent key should be allowed")
	}

	// After the window passes, the original key is admitted again.
	now = now.Add(61 * time.Second)
	if !rl.allow("ip:1.2.3.4") {
		t.Fatalf("request after window expiry should be allowed")
	}
}

func TestFixedWindow_OpportunisticGC(t *testing.T) {
	rl := NewFixedWindowLimiter(1, time.Minute, KeyByClientIP())
	rl.ttl = time.Nanosecond

	// Seed an idle entry.
	rl.mu.Lock()
	rl.windows["old"] = &window{lastSeen: time.Now().Add(-time.Hour)}
	// Force cleanup to run on the next allow().
	rl.cleanupN = 4999
	rl.mu.Unlock()

	_ = rl.allow("new")

	rl.mu.Lock()
	_, existsOld := rl.windows["old"]
	_, existsNew := rl.windows["new"]
	rl.mu.Unlock()

	if existsOld {
		t.Fatalf("expected idle entry to be evicted by opportunistic GC")
	}
	if !existsNew {
		t.Fatalf("expected fresh entry to be created")
	}
}

func TestFixedWindow_Handler_RejectsWithEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewFixedWindowLimiter(1, 60*time.Second, KeyByClientIP())

	r := gin.New()
	r.Use(CorrelationID())
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	// First request allowed.
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request should be allowed, got %d", w1.Code)
	}

	// Second immediate request rejected with the uniform envelope.
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be rate-limited, got %d", w2.Code)
	}
	if got := w2.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("expected Retry-After=60, got %q", got)
	}

	var body map[string]any
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["error"] != "RATE_LIMIT_ERROR" {
		t.Fatalf("error code = %v", body["error"])
	}
	if body["message"] != "Rate limit exceeded" {
		t.Fatalf("message = %v", body["message"])
	}
	if body["correlation_id"] == "" || body["correlation_id"] == nil {
		t.Fatalf("correlation_id missing: %v", body)
	}
	details, ok := body["details"].(map[string]any)
	if !ok {
		t.Fatalf("details missing: %v", body)
	}
	if details["limit"] != float64(1) || details["window_seconds"] != float64(60) {
		t.Fatalf("details = %#v", details)
	}
}

func TestFixedWindow_Handler_PerIPIsolation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewFixedWindowLimiter(1, time.Minute, KeyByClientIP())

	r := gin.New()
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	send := func(ip string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.RemoteAddr = net.JoinHostPort(ip, "1000")
		r.ServeHTTP(w, req)
		return w.Code
	}

	if got := send("198.51.100.1"); got != http.StatusOK {
		t.Fatalf("first caller should pass, got %d", got)
	}
	if got := send("198.51.100.1"); got != http.StatusTooManyRequests {
		t.Fatalf("first caller should now be limited, got %d", got)
	}
	// A different caller is unaffected.
	if got := send("198.51.100.2"); got != http.StatusOK {
		t.Fatalf("second caller should pass, got %d", got)
	}
}
