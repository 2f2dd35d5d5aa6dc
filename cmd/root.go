package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumarank/lumarank/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "lumarank",
	Short: "Website visibility analysis for LLM assistants",
	Long:  "Fetches a company website, extracts a profile with an LLM, generates the questions prospects would ask an assistant, and scores whether the assistant names the company.",
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
