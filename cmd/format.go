package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/store"
)

// writeValue prints v as json or yaml. The yaml form goes through json so
// both use the same field names.
func writeValue(out io.Writer, format string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrap(err, "encode json")
	}
	switch format {
	case "json":
		_, err = fmt.Fprintln(out, string(raw))
		return err
	case "yaml":
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return eris.Wrap(err, "decode json")
		}
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("unsupported output format: %s", format)
	}
}

// writeReport prints a report in the requested format.
func writeReport(out io.Writer, format string, r *model.AnalysisReport) error {
	if format != "text" {
		return writeValue(out, format, r)
	}
	formatReport(out, r)
	return nil
}

// formatReport writes a human-readable summary of r.
func formatReport(out io.Writer, r *model.AnalysisReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Website:\t%s\n", r.WebsiteURL)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	if r.Status == model.StatusFailed {
		_, _ = fmt.Fprintf(w, "Failed stage:\t%s\n", r.FailedStage)
		_, _ = fmt.Fprintf(w, "Error:\t%s (%s)\n", r.ErrorMessage, r.ErrorCode)
	}
	if r.DurationMs > 0 {
		_, _ = fmt.Fprintf(w, "Duration:\t%s\n", (time.Duration(r.DurationMs) * time.Millisecond).Round(10*time.Millisecond))
	}
	if info := r.CompanyInfo; info != nil {
		_, _ = fmt.Fprintf(w, "Company:\t%s\n", info.Name)
		if info.Industry != nil {
			_, _ = fmt.Fprintf(w, "Industry:\t%s\n", *info.Industry)
		}
		_, _ = fmt.Fprintf(w, "Description:\t%s\n", info.Description)
		_, _ = fmt.Fprintf(w, "Ideal customer:\t%s\n", info.IdealCustomerProfile)
		if len(info.KeyFeatures) > 0 {
			_, _ = fmt.Fprintf(w, "Key features:\t%s\n", strings.Join(info.KeyFeatures, "; "))
		}
		if info.PricingSummary != nil {
			_, _ = fmt.Fprintf(w, "Pricing:\t%s\n", *info.PricingSummary)
		}
	}
	_ = w.Flush()

	printQuestions(out, "Company-specific questions", r.Questions.CompanySpecific)
	printQuestions(out, "Problem-based questions", r.Questions.ProblemBased)
	if r.GenerationError != "" {
		_, _ = fmt.Fprintf(out, "\nQuestion generation failed: %s\n", r.GenerationError)
	}

	if len(r.TestResults) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out, "\nTest results")
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tTYPE\tSCORE\tMENTIONED\tQUESTION\tREASON")
	for i, tr := range r.TestResults {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d/2\t%t\t%s\t%s\n",
			i+1, tr.Question.QuestionType, tr.Score, tr.MentionsCompany,
			shorten(tr.Question.Question, 60), tr.ScoringReason)
	}
	_ = w.Flush()
	if r.SuccessRate != nil {
		_, _ = fmt.Fprintf(out, "\nSuccess rate: %.1f%%\n", *r.SuccessRate*100)
	}
}

func printQuestions(out io.Writer, title string, qs []model.GeneratedQuestion) {
	if len(qs) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\n%s\n", title)
	for i, q := range qs {
		_, _ = fmt.Fprintf(out, "  %d. %s\n     Intent: %s\n", i+1, q.Question, q.Intent)
	}
}

// formatReportsList writes a tabular list of reports.
func formatReportsList(out io.Writer, reports []model.AnalysisReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWEBSITE\tCOMPANY\tSTATUS\tSCORE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-------\t-------\t------\t-----\t-------")
	for _, r := range reports {
		score := "-"
		if r.SuccessRate != nil {
			score = fmt.Sprintf("%.2f", *r.SuccessRate)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			shorten(r.WebsiteURL, 40),
			shorten(r.CompanyName(), 30),
			r.Status,
			score,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatReportStats writes per-status aggregates.
func formatReportStats(out io.Writer, stats []store.StatusStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STATUS\tCOUNT\tAVG_DURATION\tAVG_SCORE")
	var total int64
	for _, s := range stats {
		score := "-"
		if s.AvgSEOScore != nil {
			score = fmt.Sprintf("%.2f", *s.AvgSEOScore)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1fs\t%s\n", s.Status, s.Count, s.AvgDurationSec, score)
		total += s.Count
	}
	_, _ = fmt.Fprintf(w, "total\t%d\t\t\n", total)
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
