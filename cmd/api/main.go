package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xavierca1/kviz-leads/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "kviz-leads",
	Short: "Quiz lead intake backend",
	Long:  "Accepts quiz leads and analytics events from the frontend, deduplicates leads by phone and IP, stores them and notifies operators.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		// The bare root command serves.
		name := cmd.Name()
		if !cmd.HasParent() {
			name = "serve"
		}
		if err := c.Validate(name); err != nil {
			return fmt.Errorf("validate config: %w", err)
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
