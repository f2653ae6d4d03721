// Package main is the entry point for the Psyche API server.
//
// It loads the configuration, connects the Postgres pool, wires the identity
// and storefront services onto the core chassis (middleware, routing, health
// checks), and starts listening for requests. Responses are transparently
// gzip-compressed for clients that accept it.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"

	"psyche/internal/api/handlers"
	"psyche/internal/auth"
	"psyche/internal/config"
	"psyche/internal/core"
	"psyche/internal/db"
	"psyche/internal/external"
)

// outboundTimeout bounds every call to Google and Stripe. The BaseClient
// retries within this window, so it is deliberately generous relative to the
// per-attempt latency of either API.
const outboundTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Initialize structured logger.
	logger := newLogger(cfg.LogLevel)
	logger.Info("psyche API starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
	)

	// Build the server chassis first so its Closers slice can take ownership
	// of every resource opened below.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Database pool. The pool close is registered on the server so shutdown
	// drains it after in-flight requests finish.
	pool, err := db.NewPool(context.Background(), cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	srv.Closers = append(srv.Closers, pool.Close)
	srv.HealthProbes = append(srv.HealthProbes, &db.Probe{Pool: pool})

	// Repositories.
	users := db.NewUserRepository(pool)
	sessions := db.NewSessionRepository(pool)
	purchases := db.NewPurchaseRepository(pool)
	community := db.NewCommunityRepository(pool)

	// Outbound integrations share one HTTP client; each wraps it in its own
	// circuit breaker.
	httpClient := &http.Client{Timeout: outboundTimeout}
	googleVerifier := external.NewGoogleVerifier(httpClient, external.GoogleVerifierConfig{
		ClientID: cfg.Auth.GoogleClientID,
		Logger:   logger,
	})
	stripeClient := external.NewStripeClient(httpClient, external.StripeClientConfig{
		SecretKey: cfg.Billing.StripeSecretKey,
		Logger:    logger,
	})

	// Identity services.
	sessionService := auth.NewSessionService(auth.SessionServiceConfig{
		Sessions: sessions,
		Users:    users,
		Duration: cfg.Auth.SessionDuration,
		Logger:   logger,
	})
	signInService := auth.NewSignInService(auth.SignInServiceConfig{
		Verifier: googleVerifier,
		Users:    users,
		Sessions: sessionService,
		Logger:   logger,
	})

	// The session service doubles as the bearer-token authenticator for the
	// middleware chain.
	srv.Authenticator = sessionService

	// Domain handlers. Catalog and purchase handlers receive nil registries
	// and therefore serve the embedded catalog.
	authHandler := handlers.NewAuthHandler(signInService, sessionService, users, srv.Validator, logger)
	catalogHandler := handlers.NewCatalogHandler(nil, nil, purchases, logger)
	purchaseHandler := handlers.NewPurchaseHandler(handlers.PurchaseHandlerConfig{
		Purchases: purchases,
		Users:     users,
		Checkout:  stripeClient,
		WebAppURL: cfg.Server.WebAppURL,
		Logger:    logger,
	})
	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		purchases,
		cfg.Billing.StripeWebhookSecret,
		nil,
		logger,
	)
	communityHandler := handlers.NewCommunityHandler(community, srv.Validator, nil, logger)

	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) { authHandler.RegisterRoutes(r, srv.RequireAuth) },
		func(r chi.Router) { catalogHandler.RegisterRoutes(r, srv.RequireAuth) },
		func(r chi.Router) { purchaseHandler.RegisterRoutes(r, srv.RequireAuth) },
		webhookHandler.RegisterRoutes,
		communityHandler.RegisterRoutes,
	)

	// Mount all routes (middleware chain + versioned endpoints + health).
	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           gzhttp.GzipHandler(srv.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel to capture server errors from ListenAndServe.
	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Graceful shutdown with a 10-second deadline.
	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	// Shutdown server resources (DB pool, etc.).
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: false,
	})
	return slog.New(handler)
}
