package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/store"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect persisted analysis reports",
}

// openReports opens and migrates the report store for a subcommand.
func openReports(ctx context.Context) (*storeEnv, error) {
	stores, err := initStores(ctx, false, true)
	if err != nil {
		return nil, err
	}
	if err := stores.migrate(ctx); err != nil {
		stores.Close()
		return nil, err
	}
	return stores, nil
}

func filterFromFlags(cmd *cobra.Command) store.ReportFilter {
	entity, _ := cmd.Flags().GetString("entity-id")
	domain, _ := cmd.Flags().GetString("domain")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	offset, _ := cmd.Flags().GetInt("offset")
	return store.ReportFilter{
		EntityID: entity,
		Domain:   domain,
		Status:   model.AnalysisStatus(status),
		Limit:    limit,
		Offset:   offset,
	}
}

// -- reports list --

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		stores, err := openReports(ctx)
		if err != nil {
			return err
		}
		defer stores.Close()

		list, err := stores.Reports.ListReports(ctx, filterFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "reports list")
		}
		return printReports(cmd, list)
	},
}

// -- reports search --

var reportsSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over company name, title and description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stores, err := openReports(ctx)
		if err != nil {
			return err
		}
		defer stores.Close()

		list, err := stores.Reports.SearchReports(ctx, args[0], filterFromFlags(cmd))
		if err != nil {
			return eris.Wrap(err, "reports search")
		}
		return printReports(cmd, list)
	},
}

func printReports(cmd *cobra.Command, list []model.AnalysisReport) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "text" {
		return writeValue(os.Stdout, output, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "No reports found.")
		return nil
	}
	formatReportsList(os.Stdout, list)
	return nil
}

// -- reports show --

var reportsShowCmd = &cobra.Command{
	Use:   "show <id-or-url>",
	Short: "Show one report by ID or website URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stores, err := openReports(ctx)
		if err != nil {
			return err
		}
		defer stores.Close()

		r, err := stores.Reports.GetReport(ctx, args[0])
		if eris.Is(err, store.ErrNotFound) {
			r, err = stores.Reports.GetReportByURL(ctx, args[0])
		}
		if eris.Is(err, store.ErrNotFound) {
			return eris.Errorf("report %q not found", args[0])
		}
		if err != nil {
			return eris.Wrap(err, "reports show")
		}
		output, _ := cmd.Flags().GetString("output")
		return writeReport(os.Stdout, output, r)
	},
}

// -- reports stats --

var reportsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize reports by status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		stores, err := openReports(ctx)
		if err != nil {
			return err
		}
		defer stores.Close()

		entity, _ := cmd.Flags().GetString("entity-id")
		stats, err := stores.Reports.ReportStats(ctx, entity)
		if err != nil {
			return eris.Wrap(err, "reports stats")
		}
		output, _ := cmd.Flags().GetString("output")
		if output != "text" {
			return writeValue(os.Stdout, output, stats)
		}
		formatReportStats(os.Stdout, stats)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{reportsListCmd, reportsSearchCmd} {
		c.Flags().String("entity-id", "", "only reports of this entity")
		c.Flags().String("domain", "", "only reports for this domain")
		c.Flags().String("status", "", "only reports with this status")
		c.Flags().Int("limit", 50, "maximum number of reports")
		c.Flags().Int("offset", 0, "number of reports to skip")
	}
	reportsStatsCmd.Flags().String("entity-id", "", "only reports of this entity")
	reportsCmd.PersistentFlags().StringP("output", "o", "text", "output format: text, json or yaml")

	reportsCmd.AddCommand(reportsListCmd, reportsSearchCmd, reportsShowCmd, reportsStatsCmd)
	rootCmd.AddCommand(reportsCmd)
}
