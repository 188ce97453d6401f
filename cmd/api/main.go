package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/practice-api/internal/config"
	"github.com/jwalitptl/practice-api/internal/repository"
	"github.com/jwalitptl/practice-api/internal/repository/memory"
	"github.com/jwalitptl/practice-api/internal/repository/postgres"
	"github.com/jwalitptl/practice-api/pkg/logger"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

const metricsNamespace = "practice"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "practice-api",
		Short:         "Patient records and scheduling API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yml")

	rootCmd.AddCommand(serveCmd(), migrateCmd(), tokenCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	l := logger.FromSettings(cfg.Log.Level, cfg.Log.Console)
	log.Logger = l.ZL
	return cfg, l, nil
}

func openStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (repository.Store, error) {
	if cfg.Database.Driver == "memory" {
		return memory.NewStore(memory.WithMetrics(m)), nil
	}
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	store, err := postgres.NewStore(ctx, db, m)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
