package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hillwinds/benetl/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "benetl",
	Short: "Incremental benefits data pipeline and analytics",
	Long:  "Reads raw employee, plan, and claim feeds, cleans and validates them incrementally, enriches from the company directory, and runs coverage, cost, and roster analytics over the merged dataset.",
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
