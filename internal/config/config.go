// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, rate limiting, credential acquisition,
// auditing, and observability.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig defines the fixed-window per-IP rate limit applied at the
// gateway edge. Limiting is process-local; see middleware.FixedWindowLimiter.
type RateLimitConfig struct {
	Enabled  bool          // RATE_LIMIT_ENABLED
	Requests int           // RATE_LIMIT_REQUESTS per window (>= 1)
	Window   time.Duration // RATE_LIMIT_WINDOW (> 0)
}

// AuthConfig defines credential-provider settings for the downstream
// Microsoft identity platform. All fields are optional: when incomplete, the
// gateway starts without an authenticated client and actions that require
// one must report the absence themselves.
type AuthConfig struct {
	TenantID     string // AZURE_TENANT_ID
	ClientID     string // AZURE_CLIENT_ID
	ClientSecret string // AZURE_CLIENT_SECRET
	TokenURL     string // AZURE_TOKEN_URL override (derived from tenant when empty)

	// DefaultScope is the scope pre-validated at startup. Resolved from the
	// first non-empty of GRAPH_API_DEFAULT_SCOPE, GRAPH_SCOPE_DEFAULT and
	// GRAPH_SCOPE; a CSV value keeps only its first entry.
	DefaultScope string

	// GraphBaseURL is the base endpoint for Graph-style calls.
	GraphBaseURL string // GRAPH_API_BASE_URL

	// RefreshMargin is subtracted from a token's expiry when deciding whether
	// the cached token is still usable.
	RefreshMargin time.Duration // TOKEN_REFRESH_MARGIN

	// Outbound throttle for the authenticated client.
	OutboundRPS   float64 // OUTBOUND_RPS (tokens per second, >= 0)
	OutboundBurst int     // OUTBOUND_BURST (>= 1)
}

// AuditConfig defines request-audit persistence settings.
type AuditConfig struct {
	Enabled bool   // AUDIT_ENABLED
	DBPath  string // AUDIT_DB_PATH (SQLite file)
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "dynamics-gateway")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 30s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// API surface
	APIBasePath string // base path for API routes, e.g. "/api/v1"
	APIVersion  string // echoed in X-API-Version on every response

	// Cross-cutting
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Auth      AuthConfig
	Audit     AuditConfig
	OTEL      OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// API surface
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),
		APIVersion:  getenv("API_VERSION", "1.1.0"),

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:  getbool("RATE_LIMIT_ENABLED", true),
			Requests: getint("RATE_LIMIT_REQUESTS", 100),
			Window:   getdur("RATE_LIMIT_WINDOW", 60*time.Second),
		},

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Credential provider
		Auth: AuthConfig{
			TenantID:      getenv("AZURE_TENANT_ID", ""),
			ClientID:      getenv("AZURE_CLIENT_ID", ""),
			ClientSecret:  getenv("AZURE_CLIENT_SECRET", ""),
			TokenURL:      getenv("AZURE_TOKEN_URL", ""),
			DefaultScope:  resolveDefaultScope(),
			GraphBaseURL:  getenv("GRAPH_API_BASE_URL", "https://graph.microsoft.com/v1.0"),
			RefreshMargin: getdur("TOKEN_REFRESH_MARGIN", 10*time.Minute),
			OutboundRPS:   getfloat("OUTBOUND_RPS", 20.0),
			OutboundBurst: getint("OUTBOUND_BURST", 40),
		},

		// Auditing
		Audit: AuditConfig{
			Enabled: getbool("AUDIT_ENABLED", false),
			DBPath:  getenv("AUDIT_DB_PATH", "audit.db"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "dynamics-gateway"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.Auth.RefreshMargin < time.Minute {
		cfg.Auth.RefreshMargin = time.Minute
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		return cfg, errors.New("API_VERSION must not be empty")
	}
	if cfg.RateLimit.Requests < 1 {
		return cfg, errors.New("RATE_LIMIT_REQUESTS must be >= 1")
	}
	if cfg.RateLimit.Window <= 0 {
		return cfg, errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	if cfg.Auth.OutboundRPS < 0 {
		return cfg, errors.New("OUTBOUND_RPS must be >= 0")
	}
	if cfg.Auth.OutboundBurst < 1 {
		return cfg, errors.New("OUTBOUND_BURST must be >= 1")
	}
	if cfg.Audit.Enabled && strings.TrimSpace(cfg.Audit.DBPath) == "" {
		return cfg, errors.New("AUDIT_DB_PATH must not be empty when AUDIT_ENABLED")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// resolveDefaultScope returns the first non-empty scope value among the
// accepted environment names. Deployments have historically used several
// names for the same setting, so all are honored. A CSV value keeps only its
// first entry.
func resolveDefaultScope() string {
	for _, k := range []string{"GRAPH_API_DEFAULT_SCOPE", "GRAPH_SCOPE_DEFAULT", "GRAPH_SCOPE"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			if parts := splitCSV(v); len(parts) > 0 {
				return parts[0]
			}
			return v
		}
	}
	return "https://graph.microsoft.com/.default"
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare integers are accepted as seconds (legacy deployments set
		// RATE_LIMIT_WINDOW=60).
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
