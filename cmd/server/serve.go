package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/app"
	"github.com/nekogravitycat/table-booking-backend/internal/db"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  runServe,
	}
	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.ValidateServe(); err != nil {
		log.Error("invalid configuration", zap.Error(err))
		return err
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store unavailable", zap.Error(err))
		return err
	}
	defer st.Close()

	// The in-memory store starts empty on every run.
	if err := app.Migrate(ctx, st); err != nil {
		log.Error("failed to define collections", zap.Error(err))
		return err
	}

	// Redis is optional; schedules are read straight from the store without it.
	var rdb redis.UniversalClient
	if cfg.Redis.Enabled() {
		client, err := db.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, schedule cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			rdb = client
		}
	}

	container := app.NewContainer(app.Config{
		IsProduction:     cfg.IsProduction,
		ProdOrigins:      cfg.ProdOrigins,
		Store:            st,
		Redis:            rdb,
		ScheduleCacheTTL: cfg.ScheduleCacheTTL,
		Logger:           log,
		JWTSecret:        cfg.JWTSecret,
		JWTTTL:           cfg.JWTAccessTokenTTL,
		BcryptCost:       cfg.BcryptCost,
		Booking:          cfg.Booking,
		Locations:        cfg.Locations,
	})

	// Use http.Server for graceful shutdown
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           container.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Run server in separate goroutine
	errCh := make(chan error, 1)
	go func() {
		log.Info("server running", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for Ctrl+C
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error("server error", zap.Error(err))
			return err
		}
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited gracefully")
	return nil
}
