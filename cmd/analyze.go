package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/pipeline"
	"github.com/lumarank/lumarank/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze one website locally, without the API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		companyName, _ := cmd.Flags().GetString("company-name")
		quick, _ := cmd.Flags().GetBool("quick")
		output, _ := cmd.Flags().GetString("output")
		save, _ := cmd.Flags().GetBool("save")
		entityID, _ := cmd.Flags().GetString("entity-id")

		switch output {
		case "text", "json", "yaml":
		default:
			return eris.Errorf("unsupported output format: %s", output)
		}
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var reports store.ReportStore
		if save {
			stores, err := initStores(ctx, false, true)
			if err != nil {
				return err
			}
			defer stores.Close()
			if err := stores.migrate(ctx); err != nil {
				return err
			}
			reports = stores.Reports
		}

		analyzer, err := initAnalyzer(ctx, reports)
		if err != nil {
			return err
		}

		sess := localSession(entityID)
		companyName = strings.TrimSpace(companyName)

		var report *model.AnalysisReport
		if quick {
			report, err = analyzer.AnalyzeQuick(ctx, sess, args[0], companyName)
		} else {
			report, err = analyzer.Analyze(ctx, sess, pipeline.AnalyzeRequest{
				WebsiteURL:    args[0],
				CompanyName:   companyName,
				TestQuestions: true,
			})
		}
		if report != nil {
			if werr := writeReport(os.Stdout, output, report); werr != nil {
				return werr
			}
		}
		if err != nil {
			zap.L().Error("analysis failed", zap.String("url", args[0]), zap.Error(err))
			return err
		}
		return nil
	},
}

// localSession stands in for an authenticated caller on the command line.
func localSession(entityID string) model.SessionContext {
	return model.SessionContext{
		User:       model.User{ID: "cli", Email: "cli@localhost", IsActive: true},
		Entity:     model.Entity{ID: entityID, Name: "local", IsActive: true},
		Membership: model.Membership{Role: model.RoleOwner, IsActive: true},
		RequestID:  "cli_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
	}
}

func init() {
	analyzeCmd.Flags().String("company-name", "", "override the extracted company name")
	analyzeCmd.Flags().Bool("quick", false, "skip testing and scoring the generated questions")
	analyzeCmd.Flags().StringP("output", "o", "text", "output format: text, json or yaml")
	analyzeCmd.Flags().Bool("save", false, "persist the report to the configured report store")
	analyzeCmd.Flags().String("entity-id", "", "entity to attribute saved reports to")
	rootCmd.AddCommand(analyzeCmd)
}
