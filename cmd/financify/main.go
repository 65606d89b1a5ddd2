package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"financify/internal/amqp"
	"financify/internal/cache"
	"financify/internal/cli"
	apphttp "financify/internal/http"
	"financify/internal/log"
	"financify/internal/oracle"
	"financify/internal/oracle/gemini"
	oraclemem "financify/internal/oracle/memory"
	"financify/internal/services"
	"financify/internal/session"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(slog.LevelInfo))
	slogger := cli.SetupLogger(cfg.Level())
	logger := log.NewFromLevel(cfg.Level(), log.ComponentApp)

	// A key entered in the UI wins over the server's key.
	creds := oracle.ChainCredentials{oracle.ContextCredentials{}, oracle.StaticCredentials(cfg.GeminiAPIKey)}

	var backend oracle.Oracle
	switch cfg.OracleBackend {
	case "memory":
		backend = oraclemem.New()
		logger.Info("Initialized memory oracle", "backend", cfg.OracleBackend)
	default:
		backend = gemini.New(creds, gemini.WithModel(cfg.GeminiModel))
		logger.Info("Initialized Gemini oracle",
			"backend", cfg.OracleBackend,
			"model", cfg.GeminiModel,
			"server_key", oracle.HasKey(context.Background(), creds))
	}

	catalogRes := cli.InitCatalog(context.Background(), slogger, cfg)
	defer func() {
		if catalogRes.Cleanup != nil {
			if err := catalogRes.Cleanup(); err != nil {
				logger.Error("Catalog cleanup failed", log.FieldError, err)
			}
		}
	}()

	sessions := session.NewStore(cfg.SessionIdleTimeout)
	tokens, err := session.NewTokens(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		logger.Error("Failed to initialize session tokens", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set, using a random secret; sessions end on restart")
	}
	reaper, err := session.NewReaper(sessions, cfg.SessionReapSchedule)
	if err != nil {
		logger.Error("Failed to schedule session reaper", log.FieldError, err)
		os.Exit(1)
	}
	reaper.Start()

	insights := services.NewInsightsService(backend, cfg.InsightsTTL, cfg.OracleTimeout)
	caches := cache.NewManager()
	caches.Register("insights", insights.Cache())
	caches.StartCleanup(10 * time.Minute)

	deps := apphttp.Deps{
		Sessions:   sessions,
		Tokens:     tokens,
		Catalog:    catalogRes.Catalog,
		Extraction: services.NewExtractionService(backend, cfg.OracleTimeout),
		Advisor: services.NewAdvisorService(backend,
			services.WithHistory(cfg.AdvisorSendHistory),
			services.WithAdvisorTimeout(cfg.OracleTimeout)),
		Insights:           insights,
		Activity:           services.NewActivityService(nil),
		Credentials:        creds,
		Logger:             logger.WithComponent(log.ComponentHTTP),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		SecureCookies:      os.Getenv("SECURE_COOKIES") == "true",
	}

	// Keep nil interfaces nil when the broker is not configured.
	var events *amqp.Client
	if events = cli.InitAMQP(slogger, cfg); events != nil {
		deps.Activity = services.NewActivityService(events)
		deps.Events = events
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(slogger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		reaper.Stop(shutdownCtx)
		caches.Stop()
		if err := deps.Activity.Close(shutdownCtx); err != nil {
			logger.Warn("Activity queue not drained", log.FieldError, err)
		}
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("AMQP close failed", log.FieldError, err)
			}
		}
	})

	logger.Info("Starting financify server",
		"port", cfg.Port,
		"oracle", cfg.OracleBackend,
		"catalog", cfg.CatalogBackend,
		"events", events != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
