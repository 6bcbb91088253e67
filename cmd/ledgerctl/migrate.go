package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Open the configured store, which applies any pending migrations, and
check that it answers.

Examples:
  # Migrate the hosted database
  DATA_BACKEND=postgres ledgerctl migrate

  # Create or upgrade a local SQLite file
  DATA_BACKEND=sqlite LEDGER_STORE_URL=./data/ledger.db ledgerctl migrate`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	s, err := openLedger(ctx, false)
	if err != nil {
		return err
	}
	defer closeSession(cmd, s)

	if err := s.ledger.Ping(ctx); err != nil {
		return fmt.Errorf("store not reachable after migration: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema is up to date (%s backend)\n", s.cfg.DataBackend)
	return nil
}
