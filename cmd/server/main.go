// Package main initializes and starts the document vault server,
// setting up configuration, logging, the database, repositories,
// services, the filesystem watcher and the reconcile loop.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/mdvault/internal/config"
	"github.com/atinyakov/mdvault/internal/db"
	"github.com/atinyakov/mdvault/internal/logger"
	"github.com/atinyakov/mdvault/internal/repository"
	"github.com/atinyakov/mdvault/internal/server/handler/http"
	"github.com/atinyakov/mdvault/internal/service"
	"github.com/atinyakov/mdvault/internal/syncer"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer postgresDB.Close()

	if err := os.MkdirAll(options.DataDir, 0o755); err != nil {
		zapLogger.Fatal("cannot create data directory", zap.Error(err))
	}

	// Initialize repositories.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	vaultRepo := repository.NewPostgresVaultRepository(postgresDB)
	catalogRepo := repository.NewPostgresCatalogRepository(postgresDB)

	// Self-written paths are remembered briefly so the watcher can
	// ignore the engine's own disk writes.
	recent := syncer.NewRecentWrites(options.SuppressTTL)

	// Initialize business-logic services.
	userService := service.NewUserService(userRepo)
	vaultService := service.NewVaultService(vaultRepo, options.DataDir, zapLogger)
	catalogService := service.NewCatalogService(vaultRepo, catalogRepo, options.DataDir, recent, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Watch the data root for external edits and sweep the catalog
	// periodically to close any gaps the watcher misses.
	watcher := syncer.NewWatcher(options.DataDir, catalogService, recent, options.Debounce, zapLogger)
	if err := watcher.Start(ctx); err != nil {
		zapLogger.Fatal("cannot start filesystem watcher", zap.Error(err))
	}

	reconciler := syncer.NewReconciler(catalogService, options.DataDir, options.ReconcileInterval, zapLogger)
	reconciler.Start(ctx)
	if err := reconciler.Sweep(ctx); err != nil {
		zapLogger.Error("initial reconcile sweep failed", zap.Error(err))
	}

	// Create HTTP handlers and build the router.
	authHandler := &http.AuthHandler{AuthService: userService}
	vaultHandler := &http.VaultHandler{VaultService: vaultService}
	docHandler := &http.DocumentHandler{VaultService: vaultService, CatalogService: catalogService}
	router := http.NewRouter(authHandler, vaultHandler, docHandler, userService, zapLogger)

	server := &nethttp.Server{
		Addr:    options.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		zapLogger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		zapLogger.Fatal("HTTP server failed", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), options.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}

	// Stop the watcher and the reconcile loop before the database goes
	// away: in-flight dispatches and sweeps still need the catalog.
	watcher.Stop()
	reconciler.Stop()
	cancel()
}
