package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awnumar/memguard"

	"github.com/ericfisherdev/vaultdesk/internal/adapter/driven/docrepo"
	"github.com/ericfisherdev/vaultdesk/internal/adapter/driven/memstore"
	sqliteadapter "github.com/ericfisherdev/vaultdesk/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/vaultdesk/internal/adapter/driving/http"
	"github.com/ericfisherdev/vaultdesk/internal/application"
	"github.com/ericfisherdev/vaultdesk/internal/config"
	"github.com/ericfisherdev/vaultdesk/internal/domain/port/driven"
	"github.com/ericfisherdev/vaultdesk/internal/metrics"
)

func main() {
	defer memguard.Purge()

	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		memguard.Purge()
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on a malformed key or store setting).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store,
		"db_path", cfg.DBPath,
		"encryption_key_configured", cfg.HasEncryptionKey(),
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the document store and audit log.
	var (
		docs   driven.DocumentStore
		audit  driven.AuditStore
		pinger httphandler.Pinger
	)
	switch cfg.Store {
	case config.StoreMemory:
		docs = memstore.New()
		audit = memstore.NewAuditLog()
		slog.Warn("using in-memory store, secrets will not survive a restart")
	default:
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		slog.Info("database opened", "path", db.Path())

		// Run migrations on writer connection.
		version, err := sqliteadapter.RunMigrations(db.Writer)
		if err != nil {
			return err
		}
		slog.Info("migrations complete", "schema_version", version)

		docs = sqliteadapter.NewDocumentRepo(db)
		audit = sqliteadapter.NewAuditRepo(db)
		pinger = db
	}

	// 4. Wire the vault. The config copy of the key is wiped once it is
	// sealed in the service's enclave.
	m := metrics.New()
	secretStore := docrepo.NewSecretRepo(docs, docrepo.WithLogger(logger), docrepo.WithMetrics(m))
	vault := application.NewVaultService(secretStore, audit, cfg.EncryptionKey, logger, m)
	memguard.WipeBytes(cfg.EncryptionKey)
	cfg.EncryptionKey = nil

	// 5. Create HTTP handler and register API routes.
	apiHandler := httphandler.NewHandler(vault, pinger, logger)
	handler := httphandler.NewServeMux(apiHandler, logger, m)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	slog.Info("vaultdesk started",
		"listen_addr", cfg.ListenAddr,
		"vault_ready", vault.Configured(),
	)

	// 6. Wait for shutdown signal or a listener failure.
	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err, ok := <-serveErr:
		if ok {
			return err
		}
	}

	// 7. Graceful shutdown with 10s timeout for in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
