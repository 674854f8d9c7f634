// Package httpapi wires the HTTP transport (Gin) to the action registry,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, auditing, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (CorrelationID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/arley101/dynamics-gateway/internal/actions"
	"github.com/arley101/dynamics-gateway/internal/apperr"
	"github.com/arley101/dynamics-gateway/internal/auth"
	"github.com/arley101/dynamics-gateway/internal/config"
	"github.com/arley101/dynamics-gateway/internal/http/handlers"
	"github.com/arley101/dynamics-gateway/internal/http/middleware"
	"github.com/arley101/dynamics-gateway/internal/openapi"
)

// Deps bundles the injected dependencies of the router. AuditDB may be nil
// when auditing is disabled; Client may be nil when credential bootstrap
// failed or was never configured.
type Deps struct {
	Registry *actions.Registry
	Client   *auth.Client
	AuditDB  *gorm.DB
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting,
// CORS and security headers, health, metrics and OpenAPI endpoints, and then
// mounts the dispatch API under the configured base path.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. CorrelationID: generate/propagate correlation id
//  3. Logger: structured request logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Rate limiter (per client IP, fixed window)
//  9. CORS and security headers
//  10. Audit trail (after response, dispatch requests only)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.CorrelationID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with correlation id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress JSON payloads; binary downloads are already compressed
	//    formats more often than not, gzip skips them by size heuristic anyway.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Fixed-window rate limiter per client IP
	if cfg.RateLimit.Enabled {
		rl := middleware.NewFixedWindowLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, middleware.KeyByClientIP())
		r.Use(rl.Handler())
	}

	// 9) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderCorrelationID},
		ExposeHeaders:    []string{middleware.HeaderCorrelationID, middleware.HeaderAPIVersion, "Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers on every response
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		APIVersion: cfg.APIVersion,
	}))

	// 10) Audit trail (no-op when auditing is disabled)
	if deps.AuditDB != nil {
		r.Use(middleware.Audit(deps.AuditDB))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, apperr.NotFound("route not found"))
	})
	r.NoMethod(func(c *gin.Context) {
		env := apperr.Business("method not allowed").ToEnvelope(middleware.CorrelationIDFrom(c))
		c.AbortWithStatusJSON(http.StatusMethodNotAllowed, env)
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": cfg.APIVersion,
			"actions": deps.Registry.Len(),
		})
	})

	// OpenAPI document for external tool integration (downgraded to 3.0.3)
	doc := openapi.New(openapi.Info{
		Title:       "Dynamics Action Gateway",
		Version:     cfg.APIVersion,
		Description: "Gateway de acciones dinámicas: un único endpoint que despacha acciones registradas contra APIs externas.",
		BasePath:    cfg.APIBasePath,
	})
	r.GET("/openapi.json", func(c *gin.Context) {
		c.JSON(http.StatusOK, doc.Spec())
	})

	// Dependency injection: handlers ← registry/client
	h := handlers.New(deps.Registry, deps.Client)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/dynamics", h.Dispatch)
		api.GET("/actions", h.ListActions)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
