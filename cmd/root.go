package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openqb/qantagen/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "qantagen",
	Short: "Quizbowl packet to QANTA dataset converter",
	Long:  "Parses tournament packet files, segments and normalizes questions, resolves answer lines to canonical Wikipedia titles, and writes QANTA-style datasets.",
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
