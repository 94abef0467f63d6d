package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/textweave/textweave/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "textweave",
	Short: "Text annotation pipeline engine",
	Long:  "Runs composable annotation pipelines (tokenizers, matchers, normalizers) over documents, tracking every derived span back to the raw text, with provenance and persistent storage.",
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
