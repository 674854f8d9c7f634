// Command server runs the dynamics action gateway: a single-endpoint HTTP
// service that dispatches named actions against external APIs and normalizes
// their results.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/arley101/dynamics-gateway/internal/actions"
	"github.com/arley101/dynamics-gateway/internal/auth"
	"github.com/arley101/dynamics-gateway/internal/config"
	httpapi "github.com/arley101/dynamics-gateway/internal/http"
	"github.com/arley101/dynamics-gateway/internal/observability"
	"github.com/arley101/dynamics-gateway/internal/repo"
	"github.com/arley101/dynamics-gateway/internal/sysutil"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)

	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, cfg.APIVersion)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(shCtx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Audit persistence (optional)
	var auditDB *gorm.DB
	if cfg.Audit.Enabled {
		auditDB, err = repo.OpenSQLite(cfg.Audit.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Audit.DBPath).Msg("audit db open failed")
		}
		if err := repo.AutoMigrate(auditDB); err != nil {
			log.Fatal().Err(err).Msg("audit db migration failed")
		}
		log.Info().Str("path", cfg.Audit.DBPath).Msg("audit trail enabled")
	}

	// Credential provider. An incomplete configuration is not fatal: the
	// gateway serves actions that do not need the vendor, and authenticated
	// actions report the missing credential per request.
	client := buildClient(ctx, cfg.Auth)

	store := actions.NewMemoryStore()
	registry := actions.NewDefaultRegistry(store, nil)
	log.Info().Int("actions", registry.Len()).Msg("action registry built")

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Registry: registry,
		Client:   client,
		AuditDB:  auditDB,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("base_path", cfg.APIBasePath).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("server stopped")
}

// buildClient assembles the authenticated vendor client from configuration:
// client-credentials source, TTL token cache, outbound throttle. Returns nil
// when the credential configuration is incomplete. Preflight failures are
// logged and tolerated.
func buildClient(ctx context.Context, ac config.AuthConfig) *auth.Client {
	creds := auth.Credentials{
		TenantID:     ac.TenantID,
		ClientID:     ac.ClientID,
		ClientSecret: ac.ClientSecret,
		TokenURL:     ac.TokenURL,
	}
	if !creds.Complete() {
		log.Warn().Msg("credential configuration incomplete; starting without authenticated client")
		return nil
	}

	cache := auth.NewCache(auth.NewClientCredentialsSource(creds), time.Hour, ac.RefreshMargin)
	client := auth.NewClient(cache, auth.ClientOptions{
		BaseURL: ac.GraphBaseURL,
		Scope:   ac.DefaultScope,
		RPS:     ac.OutboundRPS,
		Burst:   ac.OutboundBurst,
	})

	pfCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.Preflight(pfCtx); err != nil {
		log.Warn().Err(err).Str("scope", ac.DefaultScope).
			Msg("credential preflight failed; authenticated actions will retry per request")
	} else {
		log.Info().Str("scope", ac.DefaultScope).Msg("credential preflight ok")
	}
	return client
}
