package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/acquisition-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "acquisition-cli",
	Short: "Business-for-sale acquisition scanner",
	Long:  "Scans business-for-sale platforms, scores and filters listings against acquisition criteria, deduplicates across sources, and emits a ranked report.",
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
