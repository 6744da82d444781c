package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/infra/config"
	"github.com/ulut0002/base-backend/internal/infra/logger"
)

// NewRootCmd creates the root command for the credential service CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credctl",
		Short: "Operate the credential service",
		Long: `credctl runs maintenance tasks against the credential service database.
Configuration is read from CRED_* environment variables and an optional .env file.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSweepCmd())

	return cmd
}

// loadRuntime reads the configuration and builds a logger for a subcommand.
func loadRuntime() (*config.AppConfig, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
