package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ulut0002/base-backend/internal/infra/database"
	postgresrepo "github.com/ulut0002/base-backend/internal/repository/postgres"
	"github.com/ulut0002/base-backend/internal/usecase"
)

// NewSweepCmd creates the sweep subcommand, which deletes expired verification codes
// and issuance records older than every request window.
func NewSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired verification codes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			pool, err := database.NewPostgresPool(cmd.Context(), cfg.Postgres, log)
			if err != nil {
				return fmt.Errorf("init postgres: %w", err)
			}
			defer pool.Close()

			repos := postgresrepo.NewRepositories(pool, cfg.Store.Timeout)
			ledger := usecase.NewVerificationCodeLedger(repos.VerificationCodes, cfg.Recovery.CodeLength)

			n, err := ledger.SweepExpired(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("expired codes deleted", zap.Int("count", n))
			cmd.Printf("deleted %d expired codes\n", n)

			retain := max(cfg.Recovery.PasswordReset.Window, cfg.Recovery.EmailVerification.Window)
			if retain <= 0 {
				return nil
			}
			pruned, err := ledger.PruneIssuances(cmd.Context(), retain)
			if err != nil {
				return err
			}
			log.Info("stale issuances pruned", zap.Int("count", pruned))
			cmd.Printf("pruned %d issuance records\n", pruned)
			return nil
		},
	}
}
