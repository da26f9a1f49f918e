package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/participation-cli/internal/config"
)

var cfg *config.Config

// ledgerID is the --ledger flag shared by every subcommand that reads or writes a ledger.
var ledgerID string

var rootCmd = &cobra.Command{
	Use:   "participation-cli",
	Short: "Weekly class participation ledger",
	Long:  "Reshapes raw weekly roster sheets into a per-student, per-week participation ledger, merges them idempotently, and reports scores.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ledgerID, "ledger", "", "ledger id (default \"default\")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
