// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a lightweight, in-memory, fixed-window rate limiter
// with per-client-IP windows and opportunistic garbage collection. It is
// designed for simplicity, low overhead, and predictable behavior in a
// single-process deployment (e.g., a container or dev setup).
//
// Features:
//   - Per-IP fixed windows: at most R requests within the trailing W seconds
//   - Timestamps pruned lazily on each lookup
//   - Best-effort cleanup of idle entries to bound memory
//   - 429 responses use the uniform error envelope with Retry-After
//
// Notes:
//   - This limiter is process-local. For horizontally scaled deployments,
//     prefer a distributed limiter (e.g., Redis-backed) to enforce global limits.
//   - The limiter is intended for edge-level abuse control and cost protection;
//     it is not an authorization mechanism.
package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arley101/dynamics-gateway/internal/apperr"
)

// keyFunc selects the identity used to key a rate-limit window.
//
// Implementations should return a stable string for the duration of a request
// (e.g., "ip:<addr>").
type keyFunc func(*gin.Context) string

// KeyByClientIP returns a keyFunc that identifies callers by client IP,
// honoring X-Forwarded-For via Gin's ClientIP resolution.
func KeyByClientIP() keyFunc {
	return func(c *gin.Context) string {
		return "ip:" + c.ClientIP()
	}
}

// window holds one caller's request timestamps and the last time it was seen.
// Used to opportunistically evict idle entries.
type window struct {
	stamps   []time.Time
	lastSeen time.Time
}

// FixedWindowLimiter implements a per-key fixed-window rate limit: a request
// is rejected when the key already accumulated limit timestamps within the
// trailing window. Entries are created on demand in an internal map guarded
// by a mutex; idle entries are evicted after a TTL via opportunistic cleanup
// during lookups to keep memory usage bounded.
//
// This type is safe for concurrent use.
type FixedWindowLimiter struct {
	limit  int
	window time.Duration
	keyFn  keyFunc

	mu      sync.Mutex
	windows map[string]*window

	ttl      time.Duration
	cleanupN uint64

	now func() time.Time // test seam
}

// NewFixedWindowLimiter constructs a limiter allowing limit requests per
// window for each key.
//
//   - limit:  maximum requests per window; values <= 0 are coerced to 1.
//   - window: window length; values <= 0 are coerced to one minute.
//   - keyFn:  function that maps a request to a window identity.
//
// The returned limiter is ready to be installed as middleware via Handler().
func NewFixedWindowLimiter(limit int, windowDur time.Duration, keyFn keyFunc) *FixedWindowLimiter {
	if limit <= 0 {
		limit = 1
	}
	if windowDur <= 0 {
		windowDur = time.Minute
	}
	return &FixedWindowLimiter{
		limit:   limit,
		window:  windowDur,
		keyFn:   keyFn,
		windows: make(map[string]*window),
		ttl:     10 * time.Minute, // evict idle entries after TTL
		now:     time.Now,
	}
}

// allow records a request for key at time now and reports whether it is
// within the limit. It also performs opportunistic GC of idle entries after
// ~5000 lookups.
//
// IMPORTANT: Run GC *before* touching the requested window so an "old" entry
// can be evicted even when it's the one being fetched.
func (rl *FixedWindowLimiter) allow(key string) bool {
	now := rl.now()
	cutoff := now.Add(-rl.window)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Opportunistic cleanup after a threshold of lookups, then reset the
	// counter. Do this BEFORE updating/creating the requested window to avoid
	// refreshing an "old" entry that should be evicted.
	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, w := range rl.windows {
			if now.Sub(w.lastSeen) >= rl.ttl {
				delete(rl.windows, k)
			}
		}
		rl.cleanupN = 0
	}

	w, ok := rl.windows[key]
	if !ok {
		w = &window{}
		rl.windows[key] = w
	}
	w.lastSeen = now

	// Prune timestamps that fell out of the window.
	kept := w.stamps[:0]
	for _, t := range w.stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= rl.limit {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Handler returns a Gin middleware that enforces the per-key fixed window.
//
// Rejected requests receive:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: <window seconds>
//	{
//	  "error":          "RATE_LIMIT_ERROR",
//	  "message":        "Rate limit exceeded",
//	  "correlation_id": "<uuid>",
//	  "details":        { "limit": R, "window_seconds": W }
//	}
func (rl *FixedWindowLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.keyFn(c)
		if rl.allow(key) {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
		env := apperr.RateLimited("").
			WithDetails(map[string]any{
				"limit":          rl.limit,
				"window_seconds": int(rl.window.Seconds()),
			}).
			ToEnvelope(CorrelationIDFrom(c))
		c.AbortWithStatusJSON(apperr.KindRateLimit.Status(), env)
	}
}
