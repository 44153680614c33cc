package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/config"
	"github.com/nekogravitycat/table-booking-backend/internal/db"
	"github.com/nekogravitycat/table-booking-backend/internal/logger"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
	"github.com/nekogravitycat/table-booking-backend/internal/store/memstore"
	"github.com/nekogravitycat/table-booking-backend/internal/store/postgres"
)

const serviceName = "table-booking"

var RootCmd = &cobra.Command{
	Use:   "server",
	Short: "Table reservation backend",
	Long: `Table reservation backend

Configuration is read from .env (optional) and the environment.
Run without a subcommand to serve the HTTP API.
`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	// For receiving Ctrl+C / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

// openStore connects the configured record store backend.
func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on exit")
		return memstore.New(log), nil
	default:
		pool, err := db.NewPool(ctx, cfg.DB, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to db: %w", err)
		}
		return postgres.New(pool, log), nil
	}
}
