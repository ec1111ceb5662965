package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/trestlehq/bidlevel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "bidlevel",
	Short: "Construction bid reconciliation",
	Long:  "Levels subcontractor bids against the takeoff estimate and each other: matches line items, flags quantity and price variances, and manages bid status.",
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
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
