package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tenant tables and report indexes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("store"); err != nil {
			return err
		}
		ctx := cmd.Context()

		stores, err := initStores(ctx, true, true)
		if err != nil {
			return err
		}
		defer stores.Close()

		if err := stores.migrate(ctx); err != nil {
			return err
		}
		zap.L().Info("migrations applied",
			zap.String("store", cfg.Store.Driver),
			zap.String("reports", cfg.Reports.Driver),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
