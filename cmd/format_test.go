//go:build !integration

package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lumarank/lumarank/internal/model"
	"github.com/lumarank/lumarank/internal/store"
)

func ptr[T any](v T) *T { return &v }

func sampleReport() *model.AnalysisReport {
	created := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	r := model.NewReport("0f8c2a4e-1111-4f00-9e00-abcdefabcdef", "req_1", "https://acme.example", "u1", "e1", created)
	r.CompanyInfo = &model.CompanyInfo{
		Name:                 "Acme",
		Description:          "Rocket-powered roller skates",
		IdealCustomerProfile: "Coyotes",
		KeyFeatures:          []string{"fast", "loud"},
		Industry:             ptr("Sporting goods"),
	}
	r.Questions = model.QuestionSet{
		CompanySpecific: []model.GeneratedQuestion{{Question: "Is Acme reliable?", QuestionType: model.QuestionCompanySpecific, Intent: "trust"}},
		ProblemBased:    []model.GeneratedQuestion{{Question: "How do I catch a roadrunner?", QuestionType: model.QuestionProblemBased, Intent: "solution"}},
	}
	r.TestResults = []model.TestResult{
		{Question: r.Questions.CompanySpecific[0], Score: 2, MentionsCompany: true, ScoringReason: "named"},
		{Question: r.Questions.ProblemBased[0], Score: 0, ScoringReason: "absent"},
	}
	r.Complete(created.Add(4 * time.Second))
	return r
}

func TestFormatReport_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReport(&buf, "text", sampleReport()))
	out := buf.String()

	assert.Contains(t, out, "https://acme.example")
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "Sporting goods")
	assert.Contains(t, out, "fast; loud")
	assert.Contains(t, out, "Intent: trust")
	assert.Contains(t, out, "Problem-based questions")
	assert.Contains(t, out, "2/2")
	assert.Contains(t, out, "Success rate: 50.0%")
	assert.NotContains(t, out, "Failed stage")
}

func TestFormatReport_Failed(t *testing.T) {
	r := model.NewReport("id", "req", "https://down.example", "u", "e", time.Now())
	r.Fail(model.StageFetching, "FETCH_ERROR", "connection refused", time.Now())

	var buf bytes.Buffer
	formatReport(&buf, r)
	out := buf.String()
	assert.Contains(t, out, "fetching")
	assert.Contains(t, out, "connection refused (FETCH_ERROR)")
	assert.NotContains(t, out, "Test results")
}

func TestWriteValue_JSONAndYAML(t *testing.T) {
	r := sampleReport()

	var js bytes.Buffer
	require.NoError(t, writeValue(&js, "json", r))
	assert.Contains(t, js.String(), `"website_url": "https://acme.example"`)

	var ys bytes.Buffer
	require.NoError(t, writeValue(&ys, "yaml", r))
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(ys.Bytes(), &decoded))
	assert.Equal(t, "https://acme.example", decoded["website_url"])
	assert.Equal(t, "completed", decoded["status"])

	err := writeValue(&bytes.Buffer{}, "xml", r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestFormatReportsList(t *testing.T) {
	r := sampleReport()
	var buf bytes.Buffer
	formatReportsList(&buf, []model.AnalysisReport{*r})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "WEBSITE")
	assert.Contains(t, lines[2], "0f8c2a4e")
	assert.NotContains(t, lines[2], "0f8c2a4e-1111")
	assert.Contains(t, lines[2], "0.50")
	assert.Contains(t, lines[2], "2026-03-01 09:30")
}

func TestFormatReportStats(t *testing.T) {
	var buf bytes.Buffer
	formatReportStats(&buf, []store.StatusStats{
		{Status: model.StatusCompleted, Count: 3, AvgDurationSec: 4, AvgSEOScore: ptr(0.5)},
		{Status: model.StatusFailed, Count: 1, AvgDurationSec: 1},
	})
	out := buf.String()
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "4.0s")
	assert.Contains(t, out, "0.50")
	assert.Regexp(t, `total\s+4`, out)
}

func TestTruncateAndShorten(t *testing.T) {
	assert.Equal(t, "abcdefgh", truncateID("abcdefghijkl"))
	assert.Equal(t, "abc", truncateID("abc"))
	assert.Equal(t, "short", shorten("short", 10))
	assert.Equal(t, "abcdefg...", shorten("abcdefghijklmnop", 10))
}
