package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stackwise/nacl-manager/internal/api"
	"github.com/stackwise/nacl-manager/internal/auth"
	"github.com/stackwise/nacl-manager/internal/config"
	"github.com/stackwise/nacl-manager/internal/provider"
	"github.com/stackwise/nacl-manager/internal/service"
	"github.com/stackwise/nacl-manager/internal/storage/sql"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		dir := "data"
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create data directory: %v", err)
		}
	}

	// Initialize storage
	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Initialize the provider backend
	log.Printf("Using file shim provider: %s", cfg.Provider.FileShim)
	client := provider.NewFileShim(cfg.Provider.FileShim)

	// Initialize reconcile service
	reconcileService := service.NewReconcileService(
		store,
		client,
		cfg.Reconcile.Debounce,
		cfg.Reconcile.AutoReconcile,
	)

	// Optional OIDC bearer-token auth
	var oidcVerifier *auth.OIDCVerifier
	if cfg.OIDC.Enabled {
		oidcVerifier, err = auth.NewOIDCVerifier(
			context.Background(),
			cfg.OIDC.IssuerURL,
			cfg.OIDC.ClientID,
			cfg.OIDC.GetAudiences(),
		)
		if err != nil {
			log.Fatalf("Failed to initialize OIDC verifier: %v", err)
		}
	}

	// Create router
	router := api.NewRouter(store, reconcileService, cfg.Reconcile.BootstrapAPIKey, oidcVerifier)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Printf("Starting NACL Manager on http://%s", cfg.Server.Addr())
	log.Printf("Press Ctrl+C to stop")

	// Start server in goroutine
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
