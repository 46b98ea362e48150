package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/logger"
	"storefront/internal/server"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const shutdownTimeout = 30 * time.Second

func main() {
	migrationsDir := flag.String("migrations", "migrations", "directory holding the goose SQL migrations")
	migrateOnly := flag.Bool("migrate-only", false, "apply migrations (and seed data when enabled) then exit")
	flag.Parse()

	cfg := config.Load()

	log, err := logger.New(cfg.Server.Env)
	if err != nil {
		log = logger.NewJSON(os.Stderr, zapcore.InfoLevel)
		log.Warn("Falling back to JSON logger", zap.Error(err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *migrationsDir, *migrateOnly); err != nil {
		log.Fatal("Storefront API stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, migrationsDir string, migrateOnly bool) error {
	log.Info("Starting storefront API",
		zap.String("env", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
	)

	db, err := database.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	log.Info("Database health check", zap.Any("health", db.Health()))

	if err := database.RunMigrations(db.DB(), migrationsDir, log); err != nil {
		db.Close()
		return err
	}

	srv := server.NewServer(cfg, log, server.Dependencies{DB: db})
	defer func() {
		if err := srv.Close(); err != nil {
			log.Error("Error closing server resources", zap.Error(err))
		}
	}()

	if cfg.App.SeedData {
		if err := srv.Seed(ctx); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
	}
	if migrateOnly {
		return nil
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Graceful shutdown complete")
	return nil
}
